package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/taskgate/internal/config"
	"github.com/mtlprog/taskgate/internal/database"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/handler"
	"github.com/mtlprog/taskgate/internal/middleware"
	"github.com/mtlprog/taskgate/internal/repository"
	"github.com/mtlprog/taskgate/internal/service"
	"github.com/mtlprog/taskgate/internal/sqlitestore"
	"github.com/mtlprog/taskgate/internal/store"
)

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	override := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)
	override("driver", &cfg.Database.Driver)
	override("database-url", &cfg.Database.URL)
	override("sqlite-path", &cfg.Database.SQLitePath)
	override("jwt-secret", &cfg.Auth.JWTSecret)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata["config"].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// openStore connects the configured backend and applies its migrations.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.RunMigrations(ctx, db.Pool()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repository.NewStore(db.Pool()), db.Close, nil

	case config.DriverSQLite:
		st, err := sqlitestore.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func newWorkflowService(st store.Store, cfg *config.Config) (*service.WorkflowService, error) {
	mode, err := service.ParseTransitionMode(cfg.Workflow.Transitions)
	if err != nil {
		return nil, err
	}

	return service.NewWorkflowService(st,
		service.WithTransitionPolicy(service.NewTransitionPolicy(mode)),
		service.WithPriorityRules(service.PriorityRules{
			NearDeadlineDays: cfg.Priority.NearDeadlineDays,
			StaleAfterDays:   cfg.Priority.StaleAfterDays,
		}),
	), nil
}

func runServe(c *cli.Context) error {
	ctx := c.Context
	cfg := configFrom(c)

	port := cfg.Server.Port
	if c.IsSet("port") || port == "" {
		port = c.String("port")
	}
	if port == "" {
		port = config.DefaultPort
	}
	if c.IsSet("transitions") {
		cfg.Workflow.Transitions = c.String("transitions")
	}

	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required: set --jwt-secret, JWT_SECRET or auth.jwt_secret")
	}
	tokens, err := middleware.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	workflowService, err := newWorkflowService(st, cfg)
	if err != nil {
		return err
	}

	h := handler.New(st, workflowService, tokens)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server",
			"server_addr", "http://localhost:"+port,
			"driver", cfg.Database.Driver,
			"transitions", cfg.Workflow.Transitions,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func runMigrate(c *cli.Context) error {
	st, closeStore, err := openStore(c.Context, configFrom(c))
	if err != nil {
		return err
	}
	defer closeStore()

	slog.Info("migrations applied")
	return st.Ping(c.Context)
}

func runEscalations(c *cli.Context) error {
	ctx := c.Context
	cfg := configFrom(c)

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	workflowService, err := newWorkflowService(st, cfg)
	if err != nil {
		return err
	}

	escalated, err := workflowService.Escalations(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute escalations: %w", err)
	}

	for _, v := range escalated {
		slog.Info("task escalated",
			"task_id", v.Task.ID,
			"title", v.Task.Title,
			"status", v.Task.Status,
			"stored_priority", v.Task.Priority,
			"effective_priority", v.EffectivePriority,
		)
	}
	slog.Info("escalation check complete", "escalated_count", len(escalated))
	return nil
}

func runAddProfile(c *cli.Context) error {
	ctx := c.Context

	role := domain.Role(c.String("role"))
	if !role.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRole, role)
	}

	st, closeStore, err := openStore(ctx, configFrom(c))
	if err != nil {
		return err
	}
	defer closeStore()

	profile := &domain.Profile{
		Email:    strings.TrimSpace(c.String("email")),
		FullName: strings.TrimSpace(c.String("name")),
		Role:     role,
	}
	if err := st.CreateProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	slog.Info("profile created", "profile_id", profile.ID, "email", profile.Email, "role", profile.Role)
	fmt.Fprintln(c.App.Writer, profile.ID)
	return nil
}

func runIssueToken(c *cli.Context) error {
	ctx := c.Context
	cfg := configFrom(c)

	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required: set --jwt-secret, JWT_SECRET or auth.jwt_secret")
	}
	ttl := cfg.Auth.TokenTTL
	if c.IsSet("ttl") {
		ttl = c.Duration("ttl")
	}
	tokens, err := middleware.NewTokenCodec(cfg.Auth.JWTSecret, ttl)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	profileID := c.String("profile")
	if _, err := st.GetProfile(ctx, profileID); err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	token, err := tokens.Issue(profileID)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, token)
	return nil
}
