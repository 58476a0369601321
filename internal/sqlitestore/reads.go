package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

var taskColumns = []string{
	"id", "title", "description", "status", "priority", "due_date",
	"creator_id", "assignee_id", "version", "created_at", "updated_at",
}

var profileColumns = []string{"id", "email", "full_name", "role", "created_at", "updated_at"}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*domain.Task, error) {
	var (
		task     domain.Task
		dueDate  sql.NullTime
		assignee sql.NullString
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&dueDate,
		&task.CreatorID,
		&assignee,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, store.Failure("scan task", err)
	}
	if dueDate.Valid {
		due := dueDate.Time
		task.DueDate = &due
	}
	task.AssigneeID = stringPtr(assignee)
	return &task, nil
}

func getTask(ctx context.Context, q querier, taskID string) (*domain.Task, error) {
	query, args, err := builder.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	return scanTask(q.QueryRowContext(ctx, query, args...))
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return getTask(ctx, s.db, taskID)
}

// ListTasks retrieves tasks matching the filter, newest first.
func (s *Store) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	qb := builder.Select(taskColumns...).From("tasks")

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		qb = qb.Where(sq.Eq{"status": statuses})
	}
	if filter.AssigneeID != nil {
		qb = qb.Where(sq.Eq{"assignee_id": *filter.AssigneeID})
	}
	if filter.Search != "" {
		// LIKE is case-insensitive for ASCII in SQLite.
		qb = qb.Where(sq.Like{"title": "%" + filter.Search + "%"})
	}

	query, args, err := qb.OrderBy("created_at DESC", "rowid DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Failure("query tasks", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate task rows", err)
	}
	return tasks, nil
}

// CountTasksByStatus returns the current number of tasks per status.
func (s *Store) CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	counts := make(map[domain.TaskStatus]int, len(domain.TaskStatuses))
	for _, status := range domain.TaskStatuses {
		counts[status] = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, store.Failure("query tasks by status", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, store.Failure("scan status count", err)
		}
		counts[domain.TaskStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate status rows", err)
	}
	return counts, nil
}

func scanProfile(row scanner) (*domain.Profile, error) {
	var profile domain.Profile
	err := row.Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, store.Failure("scan profile", err)
	}
	return &profile, nil
}

func (s *Store) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	query, args, err := builder.
		Select(profileColumns...).
		From("profiles").
		Where(sq.Eq{"id": profileID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return scanProfile(s.db.QueryRowContext(ctx, query, args...))
}

func (s *Store) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	query, args, err := builder.
		Select(profileColumns...).
		From("profiles").
		OrderBy("full_name ASC", "email ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Failure("query profiles", err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate profile rows", err)
	}
	return profiles, nil
}

// CreateProfile inserts a profile and populates its ID and timestamps.
func (s *Store) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	now := s.now()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now

	query, args, err := builder.
		Insert("profiles").
		Columns(profileColumns...).
		Values(profile.ID, profile.Email, profile.FullName, string(profile.Role), profile.CreatedAt, profile.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return store.Failure("create profile", err)
	}
	return nil
}

// ListApprovals returns every ledger entry for a task, oldest first.
func (s *Store) ListApprovals(ctx context.Context, taskID string) ([]*domain.ApprovalRecord, error) {
	query, args, err := builder.
		Select("id", "task_id", "approver_id", "level", "decision", "note", "created_at").
		From("approvals").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at ASC", "rowid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// ListAuditEntries returns the newest audit entries with actor names, newest first.
func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	query, args, err := builder.
		Select("a.id", "a.actor_id", "p.full_name", "a.action", "a.target_id", "a.details", "a.created_at").
		From("audit_entries a").
		LeftJoin("profiles p ON p.id = a.actor_id").
		OrderBy("a.created_at DESC", "a.rowid DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Failure("query audit entries", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var (
			entry     domain.AuditEntry
			actorName sql.NullString
			details   string
		)
		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&actorName,
			&entry.Action,
			&entry.TargetID,
			&details,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, store.Failure("scan audit entry", err)
		}
		entry.ActorName = stringPtr(actorName)
		if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
			return nil, fmt.Errorf("parse audit details: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate audit rows", err)
	}
	return entries, nil
}

// ListComments returns every comment for a task with author names, oldest first.
func (s *Store) ListComments(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	query, args, err := builder.
		Select("c.id", "c.task_id", "c.author_id", "p.full_name", "c.content", "c.created_at").
		From("task_comments c").
		LeftJoin("profiles p ON p.id = c.author_id").
		Where(sq.Eq{"c.task_id": taskID}).
		OrderBy("c.created_at ASC", "c.rowid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Failure("query comments", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var (
			comment    domain.Comment
			authorName sql.NullString
		)
		err := rows.Scan(
			&comment.ID,
			&comment.TaskID,
			&comment.AuthorID,
			&authorName,
			&comment.Content,
			&comment.CreatedAt,
		)
		if err != nil {
			return nil, store.Failure("scan comment", err)
		}
		comment.AuthorName = stringPtr(authorName)
		comments = append(comments, &comment)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate comment rows", err)
	}
	return comments, nil
}

func encodeDetails(details map[string]any) (string, error) {
	if details == nil {
		return "{}", nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("marshal audit details: %w", err)
	}
	return string(b), nil
}
