package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

// Store implements store.Store on top of a PostgreSQL connection pool.
type Store struct {
	pool      *pgxpool.Pool
	tasks     *TaskRepository
	profiles  *ProfileRepository
	approvals *ApprovalRepository
	audit     *AuditRepository
	comments  *CommentRepository
}

var _ store.Store = (*Store)(nil)

// NewStore wires all repositories around the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		tasks:     NewTaskRepository(pool),
		profiles:  NewProfileRepository(pool),
		approvals: NewApprovalRepository(pool),
		audit:     NewAuditRepository(pool),
		comments:  NewCommentRepository(pool),
	}
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, taskID)
}

func (s *Store) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	return s.tasks.List(ctx, filter)
}

func (s *Store) CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	return s.tasks.CountByStatus(ctx)
}

func (s *Store) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	return s.profiles.GetByID(ctx, profileID)
}

func (s *Store) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	return s.profiles.List(ctx)
}

func (s *Store) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	return s.profiles.Create(ctx, profile)
}

func (s *Store) ListApprovals(ctx context.Context, taskID string) ([]*domain.ApprovalRecord, error) {
	return s.approvals.GetByTaskID(ctx, taskID)
}

func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	return s.audit.ListRecent(ctx, limit)
}

func (s *Store) ListComments(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	return s.comments.GetByTaskIDWithAuthors(ctx, taskID)
}

// WithinTx runs fn inside a pgx transaction and commits when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.Failure("begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(&pgTx{tx: tx, store: s}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Failure("commit transaction", err)
	}
	return nil
}

// Ping checks if the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by database.DB.
func (s *Store) Close() {}

// pgTx routes unit-of-work writes through one pgx.Tx.
type pgTx struct {
	tx    pgx.Tx
	store *Store
}

func (t *pgTx) GetTaskForUpdate(ctx context.Context, taskID string) (*domain.Task, error) {
	return t.store.tasks.GetByIDForUpdate(ctx, t.tx, taskID)
}

func (t *pgTx) CreateTask(ctx context.Context, task *domain.Task) error {
	return t.store.tasks.Create(ctx, t.tx, task)
}

func (t *pgTx) CompareAndSetStatus(ctx context.Context, taskID string, from domain.TaskStatus, version int64, to domain.TaskStatus) (int64, error) {
	return t.store.tasks.CompareAndSetStatus(ctx, t.tx, taskID, from, version, to)
}

func (t *pgTx) InsertApproval(ctx context.Context, record *domain.ApprovalRecord) error {
	return t.store.approvals.Create(ctx, t.tx, record)
}

func (t *pgTx) InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	return t.store.audit.Create(ctx, t.tx, entry)
}

func (t *pgTx) InsertComment(ctx context.Context, comment *domain.Comment) error {
	return t.store.comments.Create(ctx, t.tx, comment)
}
