// Package sqlitestore is the embedded store backend. It keeps the whole
// workflow in a single SQLite file, which suits local use and tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mtlprog/taskgate/internal/database"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

// builder uses ? placeholders, which is what SQLite expects.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store on an SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Open opens the database file at path, applies migrations and returns the store.
// The caller is responsible for calling Close.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := database.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return New(db), nil
}

// DB exposes the underlying handle for tests and maintenance commands.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks if the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database connection.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error("failed to close sqlite database", "error", err)
		return
	}
	slog.Info("database connection closed")
}

// WithinTx runs fn inside a database/sql transaction and commits when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Failure("begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(&sqliteTx{q: tx, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return store.Failure("commit transaction", err)
	}
	return nil
}

// sqliteTx routes unit-of-work writes through one *sql.Tx.
type sqliteTx struct {
	q   querier
	now func() time.Time
}

func (t *sqliteTx) GetTaskForUpdate(ctx context.Context, taskID string) (*domain.Task, error) {
	// The single connection already serializes transactions, so a plain read is a locked read.
	return getTask(ctx, t.q, taskID)
}

func (t *sqliteTx) CreateTask(ctx context.Context, task *domain.Task) error {
	now := t.now()
	task.ID = uuid.NewString()
	task.Version = 1
	task.CreatedAt = now
	task.UpdatedAt = now

	query, args, err := builder.
		Insert("tasks").
		Columns(
			"id", "title", "description", "status", "priority", "due_date",
			"creator_id", "assignee_id", "version", "created_at", "updated_at",
		).
		Values(
			task.ID, task.Title, task.Description, string(task.Status), string(task.Priority),
			nullTime(task.DueDate), task.CreatorID, nullString(task.AssigneeID),
			task.Version, task.CreatedAt, task.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for task: %w", err)
	}

	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return store.Failure("create task", err)
	}
	return nil
}

func (t *sqliteTx) CompareAndSetStatus(
	ctx context.Context,
	taskID string,
	from domain.TaskStatus,
	version int64,
	to domain.TaskStatus,
) (int64, error) {
	query, args, err := builder.
		Update("tasks").
		Set("status", string(to)).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", t.now()).
		Where(sq.Eq{
			"id":      taskID,
			"status":  string(from),
			"version": version,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build CompareAndSetStatus query for task %s: %w", taskID, err)
	}

	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, store.Failure("update task status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, store.Failure("update task status", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: task %s is no longer %s at version %d", domain.ErrStatusConflict, taskID, from, version)
	}

	return version + 1, nil
}

func (t *sqliteTx) InsertApproval(ctx context.Context, record *domain.ApprovalRecord) error {
	record.ID = uuid.NewString()
	record.CreatedAt = t.now()

	query, args, err := builder.
		Insert("approvals").
		Columns("id", "task_id", "approver_id", "level", "decision", "note", "created_at").
		Values(
			record.ID, record.TaskID, record.ApproverID, string(record.ApproverRole),
			string(record.Decision), record.Note, record.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return store.Failure("create approval", err)
	}
	return nil
}

func (t *sqliteTx) InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	details, err := encodeDetails(entry.Details)
	if err != nil {
		return err
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = t.now()

	query, args, err := builder.
		Insert("audit_entries").
		Columns("id", "actor_id", "action", "target_id", "details", "created_at").
		Values(entry.ID, entry.ActorID, string(entry.Action), entry.TargetID, details, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return store.Failure("create audit entry", err)
	}
	return nil
}

func (t *sqliteTx) InsertComment(ctx context.Context, comment *domain.Comment) error {
	comment.ID = uuid.NewString()
	comment.CreatedAt = t.now()

	query, args, err := builder.
		Insert("task_comments").
		Columns("id", "task_id", "author_id", "content", "created_at").
		Values(comment.ID, comment.TaskID, comment.AuthorID, comment.Content, comment.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return store.Failure("create comment", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
