package domain

import "time"

// Comment is a free-text note attached to a task.
type Comment struct {
	ID         string
	TaskID     string
	AuthorID   string
	AuthorName *string
	Content    string
	CreatedAt  time.Time
}
