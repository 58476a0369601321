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

// CommentRepository handles database operations for task comments.
type CommentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

// Create inserts a comment within the transaction.
func (r *CommentRepository) Create(ctx context.Context, tx pgx.Tx, comment *domain.Comment) error {
	query, args, err := psql.
		Insert("task_comments").
		Columns("task_id", "author_id", "content").
		Values(comment.TaskID, comment.AuthorID, comment.Content).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return store.Failure("create comment", err)
	}

	return nil
}

// GetByTaskIDWithAuthors retrieves all comments for a task with author names, oldest first.
func (r *CommentRepository) GetByTaskIDWithAuthors(ctx context.Context, taskID string) ([]*domain.Comment, error) {
	query, args, err := psql.
		Select("c.id", "c.task_id", "c.author_id", "p.full_name", "c.content", "c.created_at").
		From("task_comments c").
		LeftJoin("profiles p ON p.id = c.author_id").
		Where(sq.Eq{"c.task_id": taskID}).
		OrderBy("c.created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Failure("query comments", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var comment domain.Comment
		err := rows.Scan(
			&comment.ID,
			&comment.TaskID,
			&comment.AuthorID,
			&comment.AuthorName,
			&comment.Content,
			&comment.CreatedAt,
		)
		if err != nil {
			return nil, store.Failure("scan comment", err)
		}
		comments = append(comments, &comment)
	}

	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate comment rows", err)
	}

	return comments, nil
}
