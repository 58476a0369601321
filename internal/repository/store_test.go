package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/mtlprog/taskgate/internal/database"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/repository"
	"github.com/mtlprog/taskgate/internal/store"
)

// StoreTestSuite runs against a real PostgreSQL database given by DATABASE_URL.
type StoreTestSuite struct {
	suite.Suite
	db    *database.DB
	pool  *pgxpool.Pool
	store *repository.Store

	creator  *domain.Profile
	reviewer *domain.Profile
}

func (s *StoreTestSuite) SetupSuite() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		s.T().Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, databaseURL)
	s.Require().NoError(err)
	s.db = db
	s.pool = db.Pool()

	err = database.RunMigrations(ctx, s.pool)
	s.Require().NoError(err)

	s.store = repository.NewStore(s.pool)
}

func (s *StoreTestSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *StoreTestSuite) SetupTest() {
	ctx := context.Background()

	// TRUNCATE all tables
	_, err := s.pool.Exec(ctx, "TRUNCATE profiles, tasks, approvals, audit_entries, task_comments CASCADE")
	s.Require().NoError(err)

	s.creator = &domain.Profile{Email: "member@example.com", FullName: "Mia Member", Role: domain.RoleMember}
	s.Require().NoError(s.store.CreateProfile(ctx, s.creator))
	s.reviewer = &domain.Profile{Email: "manager@example.com", FullName: "Max Manager", Role: domain.RoleManager}
	s.Require().NoError(s.store.CreateProfile(ctx, s.reviewer))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) createTask(ctx context.Context, title string, status domain.TaskStatus) *domain.Task {
	task := &domain.Task{
		Title:      title,
		Status:     status,
		Priority:   domain.TaskPriorityMedium,
		CreatorID:  s.creator.ID,
		AssigneeID: &s.creator.ID,
	}
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.CreateTask(ctx, task)
	})
	s.Require().NoError(err, "failed to create task")
	return task
}

func (s *StoreTestSuite) TestCreateAndGetTask() {
	ctx := context.Background()
	task := s.createTask(ctx, "Write release notes", domain.TaskStatusPending)

	got, err := s.store.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal("Write release notes", got.Title)
	s.Equal(domain.TaskStatusPending, got.Status)
	s.Equal(int64(1), got.Version)
	s.Nil(got.DueDate)
}

func (s *StoreTestSuite) TestGetTask_NotFound() {
	_, err := s.store.GetTask(context.Background(), "00000000-0000-0000-0000-000000000099")
	s.ErrorIs(err, domain.ErrTaskNotFound)
}

func (s *StoreTestSuite) TestCompareAndSetStatus_StaleVersion() {
	ctx := context.Background()
	task := s.createTask(ctx, "Ship it", domain.TaskStatusReview)

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		_, err := tx.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusReview, task.Version, domain.TaskStatusCompleted)
		return err
	})
	s.Require().NoError(err)

	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		_, err := tx.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusReview, task.Version, domain.TaskStatusInProgress)
		return err
	})
	s.ErrorIs(err, domain.ErrStatusConflict)
}

func (s *StoreTestSuite) TestWithinTx_RollsBackOnError() {
	ctx := context.Background()
	task := s.createTask(ctx, "Audit me", domain.TaskStatusReview)
	boom := errors.New("boom")

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetTaskForUpdate(ctx, task.ID); err != nil {
			return err
		}
		if _, err := tx.CompareAndSetStatus(ctx, task.ID, domain.TaskStatusReview, task.Version, domain.TaskStatusCompleted); err != nil {
			return err
		}
		if err := tx.InsertAuditEntry(ctx, &domain.AuditEntry{
			ActorID:  s.reviewer.ID,
			Action:   domain.AuditActionApproveTask,
			TargetID: task.ID,
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusReview, got.Status)

	entries, err := s.store.ListAuditEntries(ctx, 10)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *StoreTestSuite) TestAuditAndComments() {
	ctx := context.Background()
	task := s.createTask(ctx, "Discuss", domain.TaskStatusInProgress)

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertComment(ctx, &domain.Comment{TaskID: task.ID, AuthorID: s.reviewer.ID, Content: "first"}); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &domain.AuditEntry{
			ActorID:  s.reviewer.ID,
			Action:   domain.AuditActionCommentTask,
			TargetID: task.ID,
			Details:  map[string]any{"task_id": task.ID},
		})
	})
	s.Require().NoError(err)

	comments, err := s.store.ListComments(ctx, task.ID)
	s.Require().NoError(err)
	s.Require().Len(comments, 1)
	s.Require().NotNil(comments[0].AuthorName)
	s.Equal("Max Manager", *comments[0].AuthorName)

	entries, err := s.store.ListAuditEntries(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(task.ID, entries[0].Details["task_id"])
	s.WithinDuration(time.Now(), entries[0].CreatedAt, time.Minute)
}

func (s *StoreTestSuite) TestCountTasksByStatus() {
	ctx := context.Background()
	s.createTask(ctx, "a", domain.TaskStatusPending)
	s.createTask(ctx, "b", domain.TaskStatusPending)

	counts, err := s.store.CountTasksByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(2, counts[domain.TaskStatusPending])
	s.Equal(0, counts[domain.TaskStatusCompleted])
	s.Len(counts, len(domain.TaskStatuses))
}
