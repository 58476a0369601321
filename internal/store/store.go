// Package store declares the persistence contract the workflow consumes.
// Implementations live in internal/repository (PostgreSQL) and
// internal/sqlitestore (embedded SQLite).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtlprog/taskgate/internal/domain"
)

// TaskFilter narrows task listings. Zero values disable a filter.
type TaskFilter struct {
	Statuses   []domain.TaskStatus
	AssigneeID *string
	Search     string // case-insensitive substring of the title
}

// Store is the read side of persistence plus the entry point for units of work.
type Store interface {
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)
	CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)

	GetProfile(ctx context.Context, profileID string) (*domain.Profile, error)
	ListProfiles(ctx context.Context) ([]*domain.Profile, error)
	CreateProfile(ctx context.Context, profile *domain.Profile) error

	ListApprovals(ctx context.Context, taskID string) ([]*domain.ApprovalRecord, error)
	ListAuditEntries(ctx context.Context, limit int) ([]*domain.AuditEntry, error)
	ListComments(ctx context.Context, taskID string) ([]*domain.Comment, error)

	// WithinTx runs fn in a single transaction. Returning an error from fn
	// rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close()
}

// Tx is the write side, valid only inside WithinTx.
type Tx interface {
	// GetTaskForUpdate reads a task and locks it until the transaction ends.
	GetTaskForUpdate(ctx context.Context, taskID string) (*domain.Task, error)
	CreateTask(ctx context.Context, task *domain.Task) error
	// CompareAndSetStatus moves the task from status `from` at `version` to `to`,
	// bumping the version. It returns domain.ErrStatusConflict when either moved.
	CompareAndSetStatus(ctx context.Context, taskID string, from domain.TaskStatus, version int64, to domain.TaskStatus) (int64, error)
	InsertApproval(ctx context.Context, record *domain.ApprovalRecord) error
	InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
	InsertComment(ctx context.Context, comment *domain.Comment) error
}

// Failure marks err as a persistence failure while keeping it inspectable.
func Failure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreFailure, err)
}
