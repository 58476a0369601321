package service

import (
	"fmt"

	"github.com/mtlprog/taskgate/internal/domain"
)

// TransitionMode selects how direct status updates are checked.
type TransitionMode string

const (
	// TransitionsOpen lets any status be set to any other status.
	TransitionsOpen TransitionMode = "open"
	// TransitionsStrict allows only the pairs in strictTransitions.
	TransitionsStrict TransitionMode = "strict"
)

// ParseTransitionMode validates a configured mode. Empty means open.
func ParseTransitionMode(s string) (TransitionMode, error) {
	switch TransitionMode(s) {
	case "", TransitionsOpen:
		return TransitionsOpen, nil
	case TransitionsStrict:
		return TransitionsStrict, nil
	default:
		return "", fmt.Errorf("unknown transition mode %q (want %q or %q)", s, TransitionsOpen, TransitionsStrict)
	}
}

// strictTransitions lists the direct updates allowed in strict mode.
// Review is left only through an approval decision.
var strictTransitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskStatusPending:    {domain.TaskStatusInProgress},
	domain.TaskStatusInProgress: {domain.TaskStatusPending, domain.TaskStatusReview},
	domain.TaskStatusCompleted:  {domain.TaskStatusInProgress},
}

// TransitionPolicy decides whether a direct status update is allowed.
type TransitionPolicy struct {
	mode TransitionMode
}

// NewTransitionPolicy creates a policy for the given mode.
func NewTransitionPolicy(mode TransitionMode) TransitionPolicy {
	if mode == "" {
		mode = TransitionsOpen
	}
	return TransitionPolicy{mode: mode}
}

// Mode returns the configured mode.
func (p TransitionPolicy) Mode() TransitionMode {
	return p.mode
}

// Check validates a direct update of task from its current status to newStatus.
func (p TransitionPolicy) Check(task *domain.Task, newStatus domain.TaskStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, newStatus)
	}
	if p.mode != TransitionsStrict {
		return nil
	}

	for _, allowed := range strictTransitions[task.Status] {
		if allowed == newStatus {
			return nil
		}
	}
	return fmt.Errorf("%w: task %s cannot move %s -> %s", domain.ErrInvalidTransition, task.ID, task.Status, newStatus)
}

// Allows reports whether a direct update from one status to another passes the policy.
func (p TransitionPolicy) Allows(from, to domain.TaskStatus) bool {
	return p.Check(&domain.Task{Status: from}, to) == nil
}
