package dto

import (
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/service"
)

// TaskResponse represents a task with its derived priority.
type TaskResponse struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	Priority          string     `json:"priority"`
	EffectivePriority string     `json:"effective_priority"`
	Escalated         bool       `json:"escalated"`
	DueDate           *time.Time `json:"due_date"`
	CreatorID         string     `json:"creator_id"`
	AssigneeID        *string    `json:"assignee_id"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TasksListResponse represents the response for GET /tasks.
type TasksListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// TaskDetailResponse represents full task details with approvals and comments.
type TaskDetailResponse struct {
	Task      TaskResponse       `json:"task"`
	Approvals []ApprovalResponse `json:"approvals"`
	Comments  []CommentResponse  `json:"comments"`
}

// ApprovalResponse represents one approval ledger record.
type ApprovalResponse struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	ApproverID   string    `json:"approver_id"`
	ApproverRole string    `json:"approver_role"`
	Decision     string    `json:"decision"`
	Note         string    `json:"note"`
	CreatedAt    time.Time `json:"created_at"`
}

// DecisionResponse is returned after an approval decision.
type DecisionResponse struct {
	Task     TaskResponse     `json:"task"`
	Approval ApprovalResponse `json:"approval"`
	AuditID  string           `json:"audit_id"`
}

// CommentResponse represents a task comment with its author's name.
type CommentResponse struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName *string   `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReviewItemResponse is a task waiting in the review queue.
type ReviewItemResponse struct {
	TaskResponse
	CreatorName string `json:"creator_name"`
}

// ReviewQueueResponse represents the response for GET /approvals.
type ReviewQueueResponse struct {
	Tasks []ReviewItemResponse `json:"tasks"`
}

// AuditEntryResponse represents one activity log entry.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	ActorName *string        `json:"actor_name"`
	Action    string         `json:"action"`
	TargetID  string         `json:"target_id"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActivityLogResponse represents the response for GET /logs.
type ActivityLogResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}

// StatsResponse represents dashboard statistics.
type StatsResponse struct {
	TotalTasks        int            `json:"total_tasks"`
	TasksByStatus     map[string]int `json:"tasks_by_status"`
	CriticalCount     int            `json:"critical_count"`
	TeamMembers       int            `json:"team_members"`
	CompletedThisWeek []WeekdayCount `json:"completed_this_week"`
}

// WeekdayCount is the number of completions on one weekday.
type WeekdayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// ProfileResponse represents a profile.
type ProfileResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// ProfilesResponse represents the response for GET /profiles.
type ProfilesResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
}

var weekdays = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ToTaskResponse converts a task view to TaskResponse.
func ToTaskResponse(v service.TaskView) TaskResponse {
	task := v.Task
	return TaskResponse{
		ID:                task.ID,
		Title:             task.Title,
		Description:       task.Description,
		Status:            string(task.Status),
		Priority:          string(task.Priority),
		EffectivePriority: string(v.EffectivePriority),
		Escalated:         v.Escalated(),
		DueDate:           task.DueDate,
		CreatorID:         task.CreatorID,
		AssigneeID:        task.AssigneeID,
		Version:           task.Version,
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
	}
}

// ToTaskDetailResponse converts a task detail to TaskDetailResponse.
func ToTaskDetailResponse(d *service.TaskDetail) TaskDetailResponse {
	resp := TaskDetailResponse{
		Task:      ToTaskResponse(d.TaskView),
		Approvals: make([]ApprovalResponse, len(d.Approvals)),
		Comments:  make([]CommentResponse, len(d.Comments)),
	}
	for i, a := range d.Approvals {
		resp.Approvals[i] = ToApprovalResponse(a)
	}
	for i, c := range d.Comments {
		resp.Comments[i] = ToCommentResponse(c)
	}
	return resp
}

// ToApprovalResponse converts domain.ApprovalRecord to ApprovalResponse.
func ToApprovalResponse(a *domain.ApprovalRecord) ApprovalResponse {
	return ApprovalResponse{
		ID:           a.ID,
		TaskID:       a.TaskID,
		ApproverID:   a.ApproverID,
		ApproverRole: string(a.ApproverRole),
		Decision:     string(a.Decision),
		Note:         a.Note,
		CreatedAt:    a.CreatedAt,
	}
}

// ToCommentResponse converts domain.Comment to CommentResponse.
func ToCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		TaskID:     c.TaskID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

// ToAuditEntryResponse converts domain.AuditEntry to AuditEntryResponse.
func ToAuditEntryResponse(e *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID,
		ActorID:   e.ActorID,
		ActorName: e.ActorName,
		Action:    string(e.Action),
		TargetID:  e.TargetID,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
}

// ToStatsResponse converts a dashboard summary to StatsResponse.
func ToStatsResponse(d *service.Dashboard) StatsResponse {
	byStatus := make(map[string]int, len(d.ByStatus))
	for status, count := range d.ByStatus {
		byStatus[string(status)] = count
	}

	week := make([]WeekdayCount, len(weekdays))
	for i, day := range weekdays {
		week[i] = WeekdayCount{Day: day, Count: d.CompletedThisWeek[i]}
	}

	return StatsResponse{
		TotalTasks:        d.Total,
		TasksByStatus:     byStatus,
		CriticalCount:     d.CriticalCount,
		TeamMembers:       d.TeamMembers,
		CompletedThisWeek: week,
	}
}

// ToProfileResponse converts domain.Profile to ProfileResponse.
func ToProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:       p.ID,
		Email:    p.Email,
		FullName: p.FullName,
		Role:     string(p.Role),
	}
}
