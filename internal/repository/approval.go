package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

// ApprovalRepository handles the append-only approval ledger.
type ApprovalRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(pool *pgxpool.Pool) *ApprovalRepository {
	return &ApprovalRepository{pool: pool}
}

// Create appends an approval record within the transaction.
func (r *ApprovalRepository) Create(ctx context.Context, tx pgx.Tx, record *domain.ApprovalRecord) error {
	query, args, err := psql.
		Insert("approvals").
		Columns("task_id", "approver_id", "level", "decision", "note").
		Values(record.TaskID, record.ApproverID, record.ApproverRole, record.Decision, record.Note).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&record.ID, &record.CreatedAt); err != nil {
		return store.Failure("create approval", err)
	}

	return nil
}

// GetByTaskID retrieves all approval records for a task, oldest first.
func (r *ApprovalRepository) GetByTaskID(ctx context.Context, taskID string) ([]*domain.ApprovalRecord, error) {
	query, args, err := psql.
		Select("id", "task_id", "approver_id", "level", "decision", "note", "created_at").
		From("approvals").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Failure("query approvals", err)
	}
	defer rows.Close()

	var records []*domain.ApprovalRecord
	for rows.Next() {
		var record domain.ApprovalRecord
		err := rows.Scan(
			&record.ID,
			&record.TaskID,
			&record.ApproverID,
			&record.ApproverRole,
			&record.Decision,
			&record.Note,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, store.Failure("scan approval", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate approval rows", err)
	}

	return records, nil
}
