package sqlitestore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/sqlitestore"
	"github.com/mtlprog/taskgate/internal/store"
	"github.com/stretchr/testify/suite"
)

// StoreTestSuite exercises the SQLite backend against a fresh database file.
type StoreTestSuite struct {
	suite.Suite
	store *sqlitestore.Store

	creator  *domain.Profile
	reviewer *domain.Profile
}

// SetupTest opens a new database for every test.
func (s *StoreTestSuite) SetupTest() {
	ctx := context.Background()

	st, err := sqlitestore.Open(ctx, filepath.Join(s.T().TempDir(), "taskgate.db"))
	s.Require().NoError(err, "failed to open sqlite store")
	s.store = st

	s.creator = &domain.Profile{Email: "member@example.com", FullName: "Mia Member", Role: domain.RoleMember}
	s.Require().NoError(s.store.CreateProfile(ctx, s.creator))
	s.reviewer = &domain.Profile{Email: "manager@example.com", FullName: "Max Manager", Role: domain.RoleManager}
	s.Require().NoError(s.store.CreateProfile(ctx, s.reviewer))
}

// TearDownTest closes the database.
func (s *StoreTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *StoreTestSuite) TestCreateAndGetTask() {
	ctx := context.Background()
	due := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	task := s.createTask(ctx, "Write release notes", domain.TaskStatusPending, &due)
	s.NotEmpty(task.ID)
	s.Equal(int64(1), task.Version)

	got, err := s.store.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal("Write release notes", got.Title)
	s.Equal(domain.TaskStatusPending, got.Status)
	s.Equal(domain.TaskPriorityMedium, got.Priority)
	s.Equal(s.creator.ID, got.CreatorID)
	s.Require().NotNil(got.AssigneeID)
	s.Equal(s.creator.ID, *got.AssigneeID)
	s.Require().NotNil(got.DueDate)
	s.True(got.DueDate.Equal(due))
	s.WithinDuration(task.CreatedAt, got.CreatedAt, time.Millisecond)
}

func (s *StoreTestSuite) TestGetTask_NotFound() {
	_, err := s.store.GetTask(context.Background(), "00000000-0000-0000-0000-000000000099")
	s.ErrorIs(err, domain.ErrTaskNotFound)
}

func (s *StoreTestSuite) TestCompareAndSetStatus() {
	ctx := context.Background()
	task := s.createTask(ctx, "Ship it", domain.TaskStatusReview, nil)

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		version, err := tx.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusReview, task.Version, domain.TaskStatusCompleted)
		s.Equal(int64(2), version)
		return err
	})
	s.Require().NoError(err)

	// A second writer holding the stale version must lose.
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		_, err := tx.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusReview, task.Version, domain.TaskStatusInProgress)
		return err
	})
	s.ErrorIs(err, domain.ErrStatusConflict)

	got, err := s.store.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusCompleted, got.Status)
	s.Equal(int64(2), got.Version)
}

func (s *StoreTestSuite) TestWithinTx_RollsBackOnError() {
	ctx := context.Background()
	task := s.createTask(ctx, "Audit me", domain.TaskStatusReview, nil)
	boom := errors.New("boom")

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusReview, task.Version, domain.TaskStatusCompleted); err != nil {
			return err
		}
		if err := tx.InsertApproval(ctx, &domain.ApprovalRecord{
			TaskID:       task.ID,
			ApproverID:   s.reviewer.ID,
			ApproverRole: s.reviewer.Role,
			Decision:     domain.DecisionApproved,
			Note:         "Approved by Max Manager",
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusReview, got.Status)

	approvals, err := s.store.ListApprovals(ctx, task.ID)
	s.Require().NoError(err)
	s.Empty(approvals)
}

func (s *StoreTestSuite) TestListTasks_Filters() {
	ctx := context.Background()
	s.createTask(ctx, "Fix login page", domain.TaskStatusPending, nil)
	s.createTask(ctx, "Review LOGIN flow", domain.TaskStatusReview, nil)
	s.createTask(ctx, "Update docs", domain.TaskStatusReview, nil)

	all, err := s.store.ListTasks(ctx, store.TaskFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Equal("Update docs", all[0].Title, "newest task comes first")

	inReview, err := s.store.ListTasks(ctx, store.TaskFilter{Statuses: []domain.TaskStatus{domain.TaskStatusReview}})
	s.Require().NoError(err)
	s.Len(inReview, 2)

	matching, err := s.store.ListTasks(ctx, store.TaskFilter{Search: "login"})
	s.Require().NoError(err)
	s.Len(matching, 2)

	none, err := s.store.ListTasks(ctx, store.TaskFilter{AssigneeID: &s.reviewer.ID})
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *StoreTestSuite) TestCountTasksByStatus_ZeroFills() {
	ctx := context.Background()
	s.createTask(ctx, "One", domain.TaskStatusPending, nil)
	s.createTask(ctx, "Two", domain.TaskStatusPending, nil)

	counts, err := s.store.CountTasksByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(2, counts[domain.TaskStatusPending])
	s.Equal(0, counts[domain.TaskStatusReview])
	s.Len(counts, len(domain.TaskStatuses))
}

func (s *StoreTestSuite) TestAuditEntries_ResolveActorName() {
	ctx := context.Background()
	task := s.createTask(ctx, "Logged", domain.TaskStatusPending, nil)

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.InsertAuditEntry(ctx, &domain.AuditEntry{
			ActorID:  s.reviewer.ID,
			Action:   domain.AuditActionApproveTask,
			TargetID: task.ID,
			Details:  map[string]any{"task_id": task.ID, "to_status": "Completed"},
		})
	})
	s.Require().NoError(err)

	entries, err := s.store.ListAuditEntries(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(domain.AuditActionApproveTask, entries[0].Action)
	s.Require().NotNil(entries[0].ActorName)
	s.Equal("Max Manager", *entries[0].ActorName)
	s.Equal("Completed", entries[0].Details["to_status"])
}

func (s *StoreTestSuite) TestComments_OldestFirst() {
	ctx := context.Background()
	task := s.createTask(ctx, "Discussed", domain.TaskStatusPending, nil)

	for _, content := range []string{"first", "second"} {
		err := s.store.WithinTx(ctx, func(tx store.Tx) error {
			return tx.InsertComment(ctx, &domain.Comment{TaskID: task.ID, AuthorID: s.creator.ID, Content: content})
		})
		s.Require().NoError(err)
	}

	comments, err := s.store.ListComments(ctx, task.ID)
	s.Require().NoError(err)
	s.Require().Len(comments, 2)
	s.Equal("first", comments[0].Content)
	s.Equal("second", comments[1].Content)
	s.Require().NotNil(comments[0].AuthorName)
	s.Equal("Mia Member", *comments[0].AuthorName)
}

func (s *StoreTestSuite) TestGetProfile() {
	ctx := context.Background()

	got, err := s.store.GetProfile(ctx, s.reviewer.ID)
	s.Require().NoError(err)
	s.Equal(domain.RoleManager, got.Role)

	_, err = s.store.GetProfile(ctx, "missing")
	s.ErrorIs(err, domain.ErrProfileNotFound)
}

// Helper: createTask inserts a task through a unit of work.
func (s *StoreTestSuite) createTask(ctx context.Context, title string, status domain.TaskStatus, due *time.Time) *domain.Task {
	task := &domain.Task{
		Title:      title,
		Status:     status,
		Priority:   domain.TaskPriorityMedium,
		DueDate:    due,
		CreatorID:  s.creator.ID,
		AssigneeID: &s.creator.ID,
	}
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.CreateTask(ctx, task)
	})
	s.Require().NoError(err, "failed to create task")
	return task
}

// TestStoreTestSuite runs the test suite.
func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
