package repository

import (
	"context"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

// CountByStatus returns the current number of tasks per status.
// Statuses without tasks are reported as zero.
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	counts := make(map[domain.TaskStatus]int, len(domain.TaskStatuses))
	for _, status := range domain.TaskStatuses {
		counts[status] = 0
	}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM tasks
		GROUP BY status
	`)
	if err != nil {
		return nil, store.Failure("query tasks by status", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, store.Failure("scan status count", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, store.Failure("iterate status rows", err)
	}

	return counts, nil
}
