package domain

import (
	"fmt"
	"time"
)

// Decision is the outcome of a review.
type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// IsValid checks if the decision is one of the allowed values.
func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// TargetStatus returns the status a task in review moves to for this decision.
func (d Decision) TargetStatus() TaskStatus {
	if d == DecisionApproved {
		return TaskStatusCompleted
	}
	return TaskStatusInProgress
}

// AuditAction returns the audit tag recorded for this decision.
func (d Decision) AuditAction() AuditAction {
	if d == DecisionApproved {
		return AuditActionApproveTask
	}
	return AuditActionRejectTask
}

// DefaultNote builds the human-readable note stored when the approver gives none.
func (d Decision) DefaultNote(approverName string) string {
	return fmt.Sprintf("%s by %s", d, approverName)
}

// ApprovalRecord is one immutable entry of the approval ledger.
type ApprovalRecord struct {
	ID           string
	TaskID       string
	ApproverID   string
	ApproverRole Role // role at decision time
	Decision     Decision
	Note         string
	CreatedAt    time.Time
}
