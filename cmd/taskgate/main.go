// @title			taskgate API
// @version		1.0
// @description	Task lifecycle with role-gated approvals, deadline-driven priority and an audit trail.
// @BasePath		/api/v1
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization

package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/taskgate/internal/config"
	"github.com/mtlprog/taskgate/internal/logger"
)

func main() {
	app := &cli.App{
		Name:  "taskgate",
		Usage: "Task workflow with approvals and audit log",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"TASKGATE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   config.DefaultLogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   config.DefaultLogFormat,
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "driver",
				Value:   config.DefaultDriver,
				Usage:   "Store driver (sqlite, postgres)",
				EnvVars: []string{"DATABASE_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Value:   config.DefaultDatabaseURL,
				Usage:   "PostgreSQL database URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "sqlite-path",
				Value:   config.DefaultSQLitePath,
				Usage:   "SQLite database file",
				EnvVars: []string{"SQLITE_PATH"},
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Usage:   "Secret used to sign session tokens",
				EnvVars: []string{"JWT_SECRET"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger.Setup(logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
			c.App.Metadata = map[string]interface{}{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.StringFlag{
						Name:    "transitions",
						Value:   config.DefaultTransitions,
						Usage:   "Direct status update policy (open, strict)",
						EnvVars: []string{"TASKGATE_TRANSITIONS"},
					},
				},
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrate,
			},
			{
				Name:   "escalations",
				Usage:  "Report open tasks whose effective priority is above the stored one",
				Action: runEscalations,
			},
			{
				Name:  "add-profile",
				Usage: "Create a team member profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Profile email", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Full name"},
					&cli.StringFlag{Name: "role", Value: "Member", Usage: "Role (Admin, Manager, Member)"},
				},
				Action: runAddProfile,
			},
			{
				Name:  "issue-token",
				Usage: "Issue a session token for a profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "profile", Usage: "Profile ID", Required: true},
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime (defaults to auth.token_ttl)"},
				},
				Action: runIssueToken,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}
