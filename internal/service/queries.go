package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/store"
)

const (
	// DefaultActivityLimit is how many audit entries the activity log shows by default.
	DefaultActivityLimit = 50
	// MaxActivityLimit caps a single activity log page.
	MaxActivityLimit = 500
)

// TaskView pairs a stored task with the priority it is shown and sorted with.
type TaskView struct {
	Task              *domain.Task
	EffectivePriority domain.TaskPriority
}

// Escalated reports whether the effective priority differs from the stored one.
func (v TaskView) Escalated() bool {
	return v.EffectivePriority != v.Task.Priority
}

// TaskDetail is a task with its approval history and comments.
type TaskDetail struct {
	TaskView
	Approvals []*domain.ApprovalRecord
	Comments  []*domain.Comment
}

func (s *WorkflowService) view(task *domain.Task, now time.Time) TaskView {
	return TaskView{Task: task, EffectivePriority: s.rules.EffectiveFor(task, now)}
}

// View evaluates a task's effective priority at the current time.
func (s *WorkflowService) View(task *domain.Task) TaskView {
	return s.view(task, s.now())
}

// GetTask returns a task with its effective priority, approvals and comments.
func (s *WorkflowService) GetTask(ctx context.Context, taskID string) (*TaskDetail, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	approvals, err := s.store.ListApprovals(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}

	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	return &TaskDetail{
		TaskView:  s.view(task, s.now()),
		Approvals: approvals,
		Comments:  comments,
	}, nil
}

// ListTasksParams narrows and orders a task listing.
type ListTasksParams struct {
	Search     string
	Statuses   []domain.TaskStatus
	AssigneeID *string
	// Priorities filters on effective priority, not the stored one.
	Priorities     []domain.TaskPriority
	SortByPriority bool
}

// ListTasks returns tasks newest first, or by descending effective priority when requested.
func (s *WorkflowService) ListTasks(ctx context.Context, params ListTasksParams) ([]TaskView, error) {
	for _, status := range params.Statuses {
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
		}
	}
	wanted := make(map[domain.TaskPriority]bool, len(params.Priorities))
	for _, priority := range params.Priorities {
		if !priority.IsValid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, priority)
		}
		wanted[priority] = true
	}

	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		Statuses:   params.Statuses,
		AssigneeID: params.AssigneeID,
		Search:     params.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	now := s.now()
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		v := s.view(task, now)
		if len(wanted) > 0 && !wanted[v.EffectivePriority] {
			continue
		}
		views = append(views, v)
	}

	if params.SortByPriority {
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].EffectivePriority.Rank() > views[j].EffectivePriority.Rank()
		})
	}

	return views, nil
}

// ReviewItem is a task waiting for a decision.
type ReviewItem struct {
	TaskView
	CreatorName string
}

// ReviewQueue lists tasks in Review for approvers, most urgent first and
// oldest first within the same effective priority.
func (s *WorkflowService) ReviewQueue(ctx context.Context, actor domain.Actor) ([]ReviewItem, error) {
	if !domain.CanApprove(actor.Role) {
		return nil, fmt.Errorf("%w: %s %s cannot view the review queue", domain.ErrNotAuthorized, actor.Role, actor.ID)
	}

	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		Statuses: []domain.TaskStatus{domain.TaskStatusReview},
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks in review: %w", err)
	}

	names, err := s.profileNames(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]ReviewItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, ReviewItem{
			TaskView:    s.view(task, now),
			CreatorName: names[task.CreatorID],
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].EffectivePriority.Rank(), items[j].EffectivePriority.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].Task.CreatedAt.Before(items[j].Task.CreatedAt)
	})

	return items, nil
}

// ActivityLog returns the most recent audit entries, newest first.
func (s *WorkflowService) ActivityLog(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}

	entries, err := s.store.ListAuditEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// ListProfiles returns every known profile.
func (s *WorkflowService) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// Dashboard summarizes the current state of all tasks.
type Dashboard struct {
	Total         int
	ByStatus      map[domain.TaskStatus]int
	CriticalCount int // tasks whose effective priority is Critical
	TeamMembers   int
	// CompletedThisWeek counts completions per weekday, Monday first.
	CompletedThisWeek [7]int
}

// Dashboard computes status distribution, critical count and this week's completions.
func (s *WorkflowService) Dashboard(ctx context.Context) (*Dashboard, error) {
	counts, err := s.store.CountTasksByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}

	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	now := s.now()
	weekStart := startOfWeek(now)

	d := &Dashboard{
		ByStatus:    counts,
		TeamMembers: len(profiles),
	}
	for _, count := range counts {
		d.Total += count
	}
	for _, task := range tasks {
		if s.rules.EffectiveFor(task, now) == domain.TaskPriorityCritical {
			d.CriticalCount++
		}
		if task.Status != domain.TaskStatusCompleted {
			continue
		}
		// The last status write of a completed task is its completion.
		completedAt := task.UpdatedAt.In(now.Location())
		if completedAt.Before(weekStart) || completedAt.After(now) {
			continue
		}
		d.CompletedThisWeek[mondayIndex(completedAt.Weekday())]++
	}

	return d, nil
}

// Escalations lists open tasks whose effective priority is above the stored one.
func (s *WorkflowService) Escalations(ctx context.Context) ([]TaskView, error) {
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		Statuses: []domain.TaskStatus{
			domain.TaskStatusPending,
			domain.TaskStatusInProgress,
			domain.TaskStatusReview,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}

	now := s.now()
	var escalated []TaskView
	for _, task := range tasks {
		v := s.view(task, now)
		if v.EffectivePriority.Rank() > task.Priority.Rank() {
			escalated = append(escalated, v)
		}
	}

	sort.SliceStable(escalated, func(i, j int) bool {
		return escalated[i].EffectivePriority.Rank() > escalated[j].EffectivePriority.Rank()
	})

	return escalated, nil
}

func (s *WorkflowService) profileNames(ctx context.Context) (map[string]string, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.DisplayName()
	}
	return names, nil
}

// startOfWeek returns Monday 00:00 of t's week in t's location.
func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -mondayIndex(t.Weekday()))
}

func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
