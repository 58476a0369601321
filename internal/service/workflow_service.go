package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

// WorkflowService coordinates task lifecycle operations, the approval gate and auditing.
// It holds no mutable state between calls; everything durable lives in the store.
type WorkflowService struct {
	store  store.Store
	policy TransitionPolicy
	rules  PriorityRules
	now    func() time.Time
}

// Option configures a WorkflowService.
type Option func(*WorkflowService)

// WithTransitionPolicy sets the policy applied to direct status updates.
func WithTransitionPolicy(policy TransitionPolicy) Option {
	return func(s *WorkflowService) {
		s.policy = policy
	}
}

// WithPriorityRules sets the thresholds used for effective priority.
func WithPriorityRules(rules PriorityRules) Option {
	return func(s *WorkflowService) {
		s.rules = rules
	}
}

// WithClock replaces the time source used for effective priority and reports.
func WithClock(now func() time.Time) Option {
	return func(s *WorkflowService) {
		s.now = now
	}
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(st store.Store, opts ...Option) *WorkflowService {
	s := &WorkflowService{
		store:  st,
		policy: NewTransitionPolicy(TransitionsOpen),
		rules:  DefaultPriorityRules(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the priority thresholds in effect.
func (s *WorkflowService) Rules() PriorityRules {
	return s.rules
}

// Now returns the service clock reading.
func (s *WorkflowService) Now() time.Time {
	return s.now()
}

// CreateTaskParams holds the caller-supplied fields of a new task.
type CreateTaskParams struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	DueDate     *time.Time
	AssigneeID  *string
}

// CreateTask creates a Pending task owned by actor and records CREATE_TASK.
func (s *WorkflowService) CreateTask(ctx context.Context, actor domain.Actor, params CreateTaskParams) (*domain.Task, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, domain.ErrEmptyTitle
	}

	priority := params.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, priority)
	}

	if params.AssigneeID != nil {
		if _, err := s.store.GetProfile(ctx, *params.AssigneeID); err != nil {
			return nil, fmt.Errorf("get assignee: %w", err)
		}
	}

	task := &domain.Task{
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		Status:      domain.TaskStatusPending,
		Priority:    priority,
		DueDate:     params.DueDate,
		CreatorID:   actor.ID,
		AssigneeID:  params.AssigneeID,
	}

	entry := &domain.AuditEntry{
		ActorID: actor.ID,
		Action:  domain.AuditActionCreateTask,
	}

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}

		entry.TargetID = task.ID
		entry.Details = map[string]any{
			"task_id":  task.ID,
			"title":    task.Title,
			"status":   string(task.Status),
			"priority": string(task.Priority),
		}
		if err := tx.InsertAuditEntry(ctx, entry); err != nil {
			return fmt.Errorf("create audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task created",
		"task_id", task.ID,
		"actor_id", actor.ID,
		"priority", task.Priority,
		"audit_id", entry.ID,
	)

	return task, nil
}

// UpdateStatus sets a task's status directly, subject to the transition policy,
// and records UPDATE_TASK_STATUS in the same transaction.
func (s *WorkflowService) UpdateStatus(
	ctx context.Context,
	taskID string,
	actor domain.Actor,
	newStatus domain.TaskStatus,
) (*domain.Task, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, newStatus)
	}

	var (
		task      *domain.Task
		oldStatus domain.TaskStatus
		entry     *domain.AuditEntry
	)

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		task, err = tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}

		if err := s.policy.Check(task, newStatus); err != nil {
			return err
		}

		oldStatus = task.Status
		version, err := tx.CompareAndSetStatus(ctx, task.ID, oldStatus, task.Version, newStatus)
		if err != nil {
			return err
		}
		task.Status = newStatus
		task.Version = version

		entry = &domain.AuditEntry{
			ActorID:  actor.ID,
			Action:   domain.AuditActionUpdateTaskStatus,
			TargetID: task.ID,
			Details: map[string]any{
				"task_id":     task.ID,
				"from_status": string(oldStatus),
				"to_status":   string(newStatus),
			},
		}
		if err := tx.InsertAuditEntry(ctx, entry); err != nil {
			return fmt.Errorf("create audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task status updated",
		"task_id", task.ID,
		"actor_id", actor.ID,
		"old_status", oldStatus,
		"new_status", newStatus,
		"audit_id", entry.ID,
	)

	return task, nil
}

// DecisionResult is everything a successful approval decision wrote.
type DecisionResult struct {
	Task     *domain.Task
	Approval *domain.ApprovalRecord
	Audit    *domain.AuditEntry
}

// DecideApproval approves or rejects a task in Review. The status move, the
// ledger record and the audit entry commit together or not at all, and the
// status move only succeeds from the Review state and version that was read,
// so of two racing decisions at most one is accepted.
func (s *WorkflowService) DecideApproval(
	ctx context.Context,
	taskID string,
	actor domain.Actor,
	decision domain.Decision,
	note string,
) (*DecisionResult, error) {
	if !domain.CanApprove(actor.Role) {
		return nil, fmt.Errorf("%w: %s %s cannot decide on task %s", domain.ErrNotAuthorized, actor.Role, actor.ID, taskID)
	}
	if !decision.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDecision, decision)
	}

	note = strings.TrimSpace(note)
	if note == "" {
		note = decision.DefaultNote(actor.Name)
	}

	result := &DecisionResult{}

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		task, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}

		if !task.IsInReview() {
			return fmt.Errorf("%w: task %s is %s", domain.ErrNotInReview, task.ID, task.Status)
		}

		target := decision.TargetStatus()
		version, err := tx.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusReview, task.Version, target)
		if err != nil {
			return err
		}
		task.Status = target
		task.Version = version

		approval := &domain.ApprovalRecord{
			TaskID:       task.ID,
			ApproverID:   actor.ID,
			ApproverRole: actor.Role,
			Decision:     decision,
			Note:         note,
		}
		if err := tx.InsertApproval(ctx, approval); err != nil {
			return fmt.Errorf("create approval: %w", err)
		}

		entry := &domain.AuditEntry{
			ActorID:  actor.ID,
			Action:   decision.AuditAction(),
			TargetID: task.ID,
			Details: map[string]any{
				"task_id":     task.ID,
				"decision":    string(decision),
				"from_status": string(domain.TaskStatusReview),
				"to_status":   string(target),
				"approval_id": approval.ID,
			},
		}
		if err := tx.InsertAuditEntry(ctx, entry); err != nil {
			return fmt.Errorf("create audit entry: %w", err)
		}

		result.Task = task
		result.Approval = approval
		result.Audit = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("approval decision recorded",
		"task_id", result.Task.ID,
		"actor_id", actor.ID,
		"decision", decision,
		"new_status", result.Task.Status,
		"approval_id", result.Approval.ID,
		"audit_id", result.Audit.ID,
	)

	return result, nil
}

// AddComment attaches a comment to a task and records COMMENT_TASK.
func (s *WorkflowService) AddComment(
	ctx context.Context,
	taskID string,
	actor domain.Actor,
	content string,
) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyComment
	}

	comment := &domain.Comment{
		TaskID:   taskID,
		AuthorID: actor.ID,
		Content:  content,
	}
	entry := &domain.AuditEntry{
		ActorID:  actor.ID,
		Action:   domain.AuditActionCommentTask,
		TargetID: taskID,
	}

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetTaskForUpdate(ctx, taskID); err != nil {
			return err
		}
		if err := tx.InsertComment(ctx, comment); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}

		entry.Details = map[string]any{
			"task_id":    taskID,
			"comment_id": comment.ID,
		}
		if err := tx.InsertAuditEntry(ctx, entry); err != nil {
			return fmt.Errorf("create audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if actor.Name != "" {
		name := actor.Name
		comment.AuthorName = &name
	}

	slog.Info("task commented",
		"task_id", taskID,
		"actor_id", actor.ID,
		"comment_id", comment.ID,
		"audit_id", entry.ID,
	)

	return comment, nil
}
