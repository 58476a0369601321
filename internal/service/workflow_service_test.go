package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/service"
	"github.com/mtlprog/taskgate/internal/sqlitestore"
	"github.com/stretchr/testify/suite"
)

// WorkflowServiceTestSuite is the test suite for WorkflowService.
type WorkflowServiceTestSuite struct {
	suite.Suite
	store   *sqlitestore.Store
	service *service.WorkflowService

	// offset shifts the service clock relative to wall time.
	offset time.Duration

	// Test fixtures
	admin   domain.Actor
	manager domain.Actor
	member  domain.Actor
}

// SetupTest runs before each test with a fresh database.
func (s *WorkflowServiceTestSuite) SetupTest() {
	ctx := context.Background()

	st, err := sqlitestore.Open(ctx, filepath.Join(s.T().TempDir(), "workflow.db"))
	s.Require().NoError(err, "failed to open store")
	s.store = st
	s.offset = 0

	s.service = service.NewWorkflowService(s.store,
		service.WithClock(func() time.Time { return time.Now().Add(s.offset) }),
	)

	s.admin = s.createProfile(ctx, "admin@example.com", "Ada Admin", domain.RoleAdmin)
	s.manager = s.createProfile(ctx, "manager@example.com", "Max Manager", domain.RoleManager)
	s.member = s.createProfile(ctx, "member@example.com", "Mia Member", domain.RoleMember)
}

// TearDownTest closes the database.
func (s *WorkflowServiceTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

// TestCreateTask_Success tests creation defaults and the audit entry.
func (s *WorkflowServiceTestSuite) TestCreateTask_Success() {
	ctx := context.Background()

	task, err := s.service.CreateTask(ctx, s.member, service.CreateTaskParams{
		Title:      "  Prepare demo  ",
		AssigneeID: &s.manager.ID,
	})
	s.Require().NoError(err)
	s.Equal("Prepare demo", task.Title)
	s.Equal(domain.TaskStatusPending, task.Status)
	s.Equal(domain.TaskPriorityMedium, task.Priority)
	s.Equal(s.member.ID, task.CreatorID)

	entries := s.auditEntries(ctx)
	s.Require().Len(entries, 1)
	s.Equal(domain.AuditActionCreateTask, entries[0].Action)
	s.Equal(task.ID, entries[0].TargetID)
}

// TestCreateTask_Validation tests rejected inputs.
func (s *WorkflowServiceTestSuite) TestCreateTask_Validation() {
	ctx := context.Background()

	_, err := s.service.CreateTask(ctx, s.member, service.CreateTaskParams{Title: "   "})
	s.ErrorIs(err, domain.ErrEmptyTitle)

	_, err = s.service.CreateTask(ctx, s.member, service.CreateTaskParams{Title: "x", Priority: "Urgent"})
	s.ErrorIs(err, domain.ErrInvalidPriority)

	missing := "00000000-0000-0000-0000-000000000404"
	_, err = s.service.CreateTask(ctx, s.member, service.CreateTaskParams{Title: "x", AssigneeID: &missing})
	s.ErrorIs(err, domain.ErrProfileNotFound)

	s.Empty(s.auditEntries(ctx))
}

// TestUpdateStatus_OpenModeAllowsAnyMove tests the unrestricted direct update.
func (s *WorkflowServiceTestSuite) TestUpdateStatus_OpenModeAllowsAnyMove() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusCompleted)

	task, err := s.service.UpdateStatus(ctx, taskID, s.member, domain.TaskStatusPending)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusPending, task.Status)

	stored := s.getTask(ctx, taskID)
	s.Equal(domain.TaskStatusPending, stored.Status)
	s.Greater(stored.Version, int64(1))

	entries := s.auditEntries(ctx)
	s.Equal(domain.AuditActionUpdateTaskStatus, entries[0].Action)
	s.Equal("Completed", entries[0].Details["from_status"])
	s.Equal("Pending", entries[0].Details["to_status"])
}

// TestUpdateStatus_StrictModeRejectsUndeclaredMove tests the transition table.
func (s *WorkflowServiceTestSuite) TestUpdateStatus_StrictModeRejectsUndeclaredMove() {
	ctx := context.Background()
	strict := service.NewWorkflowService(s.store,
		service.WithTransitionPolicy(service.NewTransitionPolicy(service.TransitionsStrict)),
	)
	taskID := s.createTask(ctx, domain.TaskStatusPending)
	before := len(s.auditEntries(ctx))

	_, err := strict.UpdateStatus(ctx, taskID, s.member, domain.TaskStatusCompleted)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.Equal(domain.TaskStatusPending, s.getTask(ctx, taskID).Status)
	s.Len(s.auditEntries(ctx), before)

	_, err = strict.UpdateStatus(ctx, taskID, s.member, domain.TaskStatusInProgress)
	s.Require().NoError(err)
	_, err = strict.UpdateStatus(ctx, taskID, s.member, domain.TaskStatusReview)
	s.Require().NoError(err)

	// Review is left only through a decision.
	_, err = strict.UpdateStatus(ctx, taskID, s.member, domain.TaskStatusCompleted)
	s.ErrorIs(err, domain.ErrInvalidTransition)
}

// TestUpdateStatus_InvalidStatus tests an unknown target status.
func (s *WorkflowServiceTestSuite) TestUpdateStatus_InvalidStatus() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusPending)

	_, err := s.service.UpdateStatus(ctx, taskID, s.member, "Done")
	s.ErrorIs(err, domain.ErrInvalidStatus)
}

// TestDecideApproval_Approve tests the approval scenario.
func (s *WorkflowServiceTestSuite) TestDecideApproval_Approve() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusReview)
	before := len(s.auditEntries(ctx))

	result, err := s.service.DecideApproval(ctx, taskID, s.manager, domain.DecisionApproved, "")
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusCompleted, result.Task.Status)
	s.Equal("Approved by Max Manager", result.Approval.Note)

	s.Equal(domain.TaskStatusCompleted, s.getTask(ctx, taskID).Status)

	approvals, err := s.store.ListApprovals(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(approvals, 1)
	s.Equal(s.manager.ID, approvals[0].ApproverID)
	s.Equal(domain.RoleManager, approvals[0].ApproverRole)
	s.Equal(domain.DecisionApproved, approvals[0].Decision)

	entries := s.auditEntries(ctx)
	s.Len(entries, before+1)
	s.Equal(domain.AuditActionApproveTask, entries[0].Action)
	s.Equal(taskID, entries[0].TargetID)
	s.Equal("Completed", entries[0].Details["to_status"])
}

// TestDecideApproval_Reject tests the rejection scenario.
func (s *WorkflowServiceTestSuite) TestDecideApproval_Reject() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusReview)

	result, err := s.service.DecideApproval(ctx, taskID, s.admin, domain.DecisionRejected, "Needs tests")
	s.Require().NoError(err)
	s.Equal("Needs tests", result.Approval.Note)
	s.Equal(domain.TaskStatusInProgress, s.getTask(ctx, taskID).Status)

	approvals, err := s.store.ListApprovals(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(approvals, 1)
	s.Equal(domain.DecisionRejected, approvals[0].Decision)
	s.Equal(domain.RoleAdmin, approvals[0].ApproverRole)

	s.Equal(domain.AuditActionRejectTask, s.auditEntries(ctx)[0].Action)
}

// TestDecideApproval_MemberNotAuthorized tests the role gate.
func (s *WorkflowServiceTestSuite) TestDecideApproval_MemberNotAuthorized() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusReview)
	before := len(s.auditEntries(ctx))

	_, err := s.service.DecideApproval(ctx, taskID, s.member, domain.DecisionApproved, "")
	s.ErrorIs(err, domain.ErrNotAuthorized)

	s.Equal(domain.TaskStatusReview, s.getTask(ctx, taskID).Status)
	s.assertNoApprovals(ctx, taskID)
	s.Len(s.auditEntries(ctx), before)
}

// TestDecideApproval_NotInReview tests the wrong-state scenario.
func (s *WorkflowServiceTestSuite) TestDecideApproval_NotInReview() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusPending)
	before := len(s.auditEntries(ctx))

	_, err := s.service.DecideApproval(ctx, taskID, s.manager, domain.DecisionApproved, "")
	s.ErrorIs(err, domain.ErrNotInReview)

	s.Equal(domain.TaskStatusPending, s.getTask(ctx, taskID).Status)
	s.assertNoApprovals(ctx, taskID)
	s.Len(s.auditEntries(ctx), before)
}

// TestDecideApproval_InvalidDecision tests an unknown decision value.
func (s *WorkflowServiceTestSuite) TestDecideApproval_InvalidDecision() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusReview)

	_, err := s.service.DecideApproval(ctx, taskID, s.manager, "Maybe", "")
	s.ErrorIs(err, domain.ErrInvalidDecision)
}

// TestDecideApproval_TaskNotFound tests a missing task.
func (s *WorkflowServiceTestSuite) TestDecideApproval_TaskNotFound() {
	_, err := s.service.DecideApproval(context.Background(), "00000000-0000-0000-0000-000000000404",
		s.manager, domain.DecisionApproved, "")
	s.ErrorIs(err, domain.ErrTaskNotFound)
}

// TestDecideApproval_ConcurrentDecisions checks that racing approvers produce one decision.
func (s *WorkflowServiceTestSuite) TestDecideApproval_ConcurrentDecisions() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusReview)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	deciders := []struct {
		actor    domain.Actor
		decision domain.Decision
	}{
		{s.manager, domain.DecisionApproved},
		{s.admin, domain.DecisionRejected},
	}
	for _, d := range deciders {
		wg.Add(1)
		go func(actor domain.Actor, decision domain.Decision) {
			defer wg.Done()
			_, err := s.service.DecideApproval(ctx, taskID, actor, decision, "")
			results <- err
		}(d.actor, d.decision)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		s.True(errors.Is(err, domain.ErrNotInReview) || errors.Is(err, domain.ErrStatusConflict),
			"loser should see a state error, got %v", err)
	}
	s.Equal(1, successCount, "exactly one decision should succeed")

	approvals, err := s.store.ListApprovals(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(approvals, 1)

	// The stored status matches the decision that was recorded.
	s.Equal(approvals[0].Decision.TargetStatus(), s.getTask(ctx, taskID).Status)
}

// TestDecideApproval_ResubmissionAppends tests that the ledger keeps every cycle.
func (s *WorkflowServiceTestSuite) TestDecideApproval_ResubmissionAppends() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusReview)

	_, err := s.service.DecideApproval(ctx, taskID, s.manager, domain.DecisionRejected, "")
	s.Require().NoError(err)
	_, err = s.service.UpdateStatus(ctx, taskID, s.member, domain.TaskStatusReview)
	s.Require().NoError(err)
	_, err = s.service.DecideApproval(ctx, taskID, s.manager, domain.DecisionApproved, "")
	s.Require().NoError(err)

	approvals, err := s.store.ListApprovals(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(approvals, 2)
	s.Equal(domain.DecisionRejected, approvals[0].Decision)
	s.Equal(domain.DecisionApproved, approvals[1].Decision)
	s.Equal(domain.TaskStatusCompleted, s.getTask(ctx, taskID).Status)
}

// TestDecideApproval_LedgerFailureRollsBack tests that a failed ledger write undoes the status move.
func (s *WorkflowServiceTestSuite) TestDecideApproval_LedgerFailureRollsBack() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusReview)
	version := s.getTask(ctx, taskID).Version
	before := len(s.auditEntries(ctx))

	_, err := s.store.DB().ExecContext(ctx, "DROP TABLE approvals")
	s.Require().NoError(err, "failed to drop approvals table")

	_, err = s.service.DecideApproval(ctx, taskID, s.manager, domain.DecisionApproved, "")
	s.ErrorIs(err, domain.ErrStoreFailure)

	task := s.getTask(ctx, taskID)
	s.Equal(domain.TaskStatusReview, task.Status)
	s.Equal(version, task.Version)
	s.Len(s.auditEntries(ctx), before)
}

// TestAddComment tests comments and their audit entry.
func (s *WorkflowServiceTestSuite) TestAddComment() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusInProgress)

	comment, err := s.service.AddComment(ctx, taskID, s.member, "Halfway there")
	s.Require().NoError(err)
	s.NotEmpty(comment.ID)

	_, err = s.service.AddComment(ctx, taskID, s.member, "  ")
	s.ErrorIs(err, domain.ErrEmptyComment)

	_, err = s.service.AddComment(ctx, "00000000-0000-0000-0000-000000000404", s.member, "hello")
	s.ErrorIs(err, domain.ErrTaskNotFound)

	detail, err := s.service.GetTask(ctx, taskID)
	s.Require().NoError(err)
	s.Require().Len(detail.Comments, 1)
	s.Equal("Halfway there", detail.Comments[0].Content)
	s.Equal(domain.AuditActionCommentTask, s.auditEntries(ctx)[0].Action)
}

// TestListTasks_EffectivePriority tests filtering and sorting on the derived priority.
func (s *WorkflowServiceTestSuite) TestListTasks_EffectivePriority() {
	ctx := context.Background()
	soon := time.Now().Add(24 * time.Hour)

	urgent, err := s.service.CreateTask(ctx, s.member, service.CreateTaskParams{
		Title:    "Low but due tomorrow",
		Priority: domain.TaskPriorityLow,
		DueDate:  &soon,
	})
	s.Require().NoError(err)
	_, err = s.service.CreateTask(ctx, s.member, service.CreateTaskParams{
		Title:    "Medium with no due date",
		Priority: domain.TaskPriorityMedium,
	})
	s.Require().NoError(err)

	high, err := s.service.ListTasks(ctx, service.ListTasksParams{
		Priorities: []domain.TaskPriority{domain.TaskPriorityHigh},
	})
	s.Require().NoError(err)
	s.Require().Len(high, 1)
	s.Equal(urgent.ID, high[0].Task.ID)
	s.Equal(domain.TaskPriorityLow, high[0].Task.Priority)
	s.True(high[0].Escalated())

	sorted, err := s.service.ListTasks(ctx, service.ListTasksParams{SortByPriority: true})
	s.Require().NoError(err)
	s.Require().Len(sorted, 2)
	s.Equal(urgent.ID, sorted[0].Task.ID)

	_, err = s.service.ListTasks(ctx, service.ListTasksParams{Statuses: []domain.TaskStatus{"Archived"}})
	s.ErrorIs(err, domain.ErrInvalidStatus)
}

// TestListTasks_AgingUsesServiceClock tests that moving the clock escalates pending work.
func (s *WorkflowServiceTestSuite) TestListTasks_AgingUsesServiceClock() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusPending)

	views, err := s.service.ListTasks(ctx, service.ListTasksParams{})
	s.Require().NoError(err)
	s.Equal(domain.TaskPriorityMedium, views[0].EffectivePriority)

	s.offset = 5 * 24 * time.Hour
	detail, err := s.service.GetTask(ctx, taskID)
	s.Require().NoError(err)
	s.Equal(domain.TaskPriorityHigh, detail.EffectivePriority)
	s.Equal(domain.TaskPriorityMedium, s.getTask(ctx, taskID).Priority, "escalation is never stored")

	escalations, err := s.service.Escalations(ctx)
	s.Require().NoError(err)
	s.Require().Len(escalations, 1)
	s.Equal(taskID, escalations[0].Task.ID)
}

// TestReviewQueue tests access and ordering.
func (s *WorkflowServiceTestSuite) TestReviewQueue() {
	ctx := context.Background()
	calm := s.createTask(ctx, domain.TaskStatusReview)
	overdue := time.Now().Add(-time.Hour)
	late, err := s.service.CreateTask(ctx, s.member, service.CreateTaskParams{Title: "Late", DueDate: &overdue})
	s.Require().NoError(err)
	_, err = s.service.UpdateStatus(ctx, late.ID, s.member, domain.TaskStatusReview)
	s.Require().NoError(err)
	s.createTask(ctx, domain.TaskStatusPending)

	_, err = s.service.ReviewQueue(ctx, s.member)
	s.ErrorIs(err, domain.ErrNotAuthorized)

	queue, err := s.service.ReviewQueue(ctx, s.manager)
	s.Require().NoError(err)
	s.Require().Len(queue, 2)
	s.Equal(late.ID, queue[0].Task.ID)
	s.Equal(domain.TaskPriorityCritical, queue[0].EffectivePriority)
	s.Equal(calm, queue[1].Task.ID)
	s.Equal("Mia Member", queue[0].CreatorName)
}

// TestDashboard tests status counts, critical count and weekly completions.
func (s *WorkflowServiceTestSuite) TestDashboard() {
	ctx := context.Background()
	s.createTask(ctx, domain.TaskStatusPending)
	reviewID := s.createTask(ctx, domain.TaskStatusReview)
	overdue := time.Now().Add(-time.Hour)
	_, err := s.service.CreateTask(ctx, s.member, service.CreateTaskParams{Title: "Late", DueDate: &overdue})
	s.Require().NoError(err)

	_, err = s.service.DecideApproval(ctx, reviewID, s.manager, domain.DecisionApproved, "")
	s.Require().NoError(err)

	d, err := s.service.Dashboard(ctx)
	s.Require().NoError(err)
	s.Equal(3, d.Total)
	s.Equal(2, d.ByStatus[domain.TaskStatusPending])
	s.Equal(1, d.ByStatus[domain.TaskStatusCompleted])
	s.Equal(0, d.ByStatus[domain.TaskStatusReview])
	s.Equal(1, d.CriticalCount)
	s.Equal(3, d.TeamMembers)

	completed := 0
	for _, n := range d.CompletedThisWeek {
		completed += n
	}
	s.Equal(1, completed)
}

// TestActivityLog tests ordering and the default limit.
func (s *WorkflowServiceTestSuite) TestActivityLog() {
	ctx := context.Background()
	taskID := s.createTask(ctx, domain.TaskStatusInProgress)
	_, err := s.service.AddComment(ctx, taskID, s.admin, "note")
	s.Require().NoError(err)

	entries, err := s.service.ActivityLog(ctx, 0)
	s.Require().NoError(err)
	s.Require().NotEmpty(entries)
	s.Equal(domain.AuditActionCommentTask, entries[0].Action)
	s.Require().NotNil(entries[0].ActorName)
	s.Equal("Ada Admin", *entries[0].ActorName)

	limited, err := s.service.ActivityLog(ctx, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

// Helper: createProfile inserts a profile and returns it as an actor.
func (s *WorkflowServiceTestSuite) createProfile(ctx context.Context, email, name string, role domain.Role) domain.Actor {
	profile := &domain.Profile{Email: email, FullName: name, Role: role}
	s.Require().NoError(s.store.CreateProfile(ctx, profile), "failed to create profile")
	return domain.ActorFromProfile(profile)
}

// Helper: createTask creates a task through the service and moves it to status.
func (s *WorkflowServiceTestSuite) createTask(ctx context.Context, status domain.TaskStatus) string {
	task, err := s.service.CreateTask(ctx, s.member, service.CreateTaskParams{
		Title:       "Test Task",
		Description: "Test Description",
	})
	s.Require().NoError(err, "failed to create task")

	if status != domain.TaskStatusPending {
		_, err = s.service.UpdateStatus(ctx, task.ID, s.member, status)
		s.Require().NoError(err, "failed to move task to %s", status)
	}
	return task.ID
}

func (s *WorkflowServiceTestSuite) getTask(ctx context.Context, taskID string) *domain.Task {
	task, err := s.store.GetTask(ctx, taskID)
	s.Require().NoError(err)
	return task
}

func (s *WorkflowServiceTestSuite) auditEntries(ctx context.Context) []*domain.AuditEntry {
	entries, err := s.store.ListAuditEntries(ctx, service.MaxActivityLimit)
	s.Require().NoError(err)
	return entries
}

func (s *WorkflowServiceTestSuite) assertNoApprovals(ctx context.Context, taskID string) {
	approvals, err := s.store.ListApprovals(ctx, taskID)
	s.Require().NoError(err)
	s.Empty(approvals)
}

// TestWorkflowServiceTestSuite runs the test suite.
func TestWorkflowServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowServiceTestSuite))
}
