package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

// AuditRepository handles the append-only audit log.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Create appends an audit entry within the transaction.
func (r *AuditRepository) Create(ctx context.Context, tx pgx.Tx, entry *domain.AuditEntry) error {
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query, args, err := psql.
		Insert("audit_entries").
		Columns("actor_id", "action", "target_id", "details").
		Values(entry.ActorID, entry.Action, entry.TargetID, details).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return store.Failure("create audit entry", err)
	}

	return nil
}

// ListRecent returns the newest audit entries with actor names, newest first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	query, args, err := psql.
		Select("a.id", "a.actor_id", "p.full_name", "a.action", "a.target_id", "a.details", "a.created_at").
		From("audit_entries a").
		LeftJoin("profiles p ON p.id = a.actor_id").
		OrderBy("a.created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Failure("query audit entries", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var details []byte
		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.ActorName,
			&entry.Action,
			&entry.TargetID,
			&details,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, store.Failure("scan audit entry", err)
		}
		if err := json.Unmarshal(details, &entry.Details); err != nil {
			return nil, fmt.Errorf("parse audit details: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate audit rows", err)
	}

	return entries, nil
}
