package domain

import "time"

// AuditAction tags the kind of mutation an audit entry describes.
type AuditAction string

const (
	AuditActionCreateTask       AuditAction = "CREATE_TASK"
	AuditActionUpdateTaskStatus AuditAction = "UPDATE_TASK_STATUS"
	AuditActionApproveTask      AuditAction = "APPROVE_TASK"
	AuditActionRejectTask       AuditAction = "REJECT_TASK"
	AuditActionCommentTask      AuditAction = "COMMENT_TASK"
)

// AuditEntry is an append-only record of one mutating workflow operation.
// Entries are informational and never read back to drive decisions.
type AuditEntry struct {
	ID        string
	ActorID   string
	ActorName *string // resolved on read, nil when the profile is gone
	Action    AuditAction
	TargetID  string
	Details   map[string]any
	CreatedAt time.Time
}
