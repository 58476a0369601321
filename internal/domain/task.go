package domain

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusReview     TaskStatus = "Review"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// TaskStatuses lists every status in lifecycle order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusReview,
	TaskStatusCompleted,
}

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// TaskPriority represents the priority level of a task.
type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "Low"
	TaskPriorityMedium   TaskPriority = "Medium"
	TaskPriorityHigh     TaskPriority = "High"
	TaskPriorityCritical TaskPriority = "Critical"
)

// priorityRanks orders priorities from lowest to highest.
var priorityRanks = map[TaskPriority]int{
	TaskPriorityLow:      1,
	TaskPriorityMedium:   2,
	TaskPriorityHigh:     3,
	TaskPriorityCritical: 4,
}

// IsValid checks if the priority is one of the allowed values.
func (p TaskPriority) IsValid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// Rank returns the position of the priority on the Low < Medium < High < Critical scale.
// Unknown priorities rank 0.
func (p TaskPriority) Rank() int {
	return priorityRanks[p]
}

// Escalate returns the next priority up the scale. Critical stays Critical.
func (p TaskPriority) Escalate() TaskPriority {
	switch p {
	case TaskPriorityLow:
		return TaskPriorityMedium
	case TaskPriorityMedium:
		return TaskPriorityHigh
	case TaskPriorityHigh, TaskPriorityCritical:
		return TaskPriorityCritical
	default:
		return p
	}
}

// Task represents a unit of work tracked by the workflow.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority // stored baseline, never rewritten by escalation
	DueDate     *time.Time
	CreatorID   string
	AssigneeID  *string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsInReview reports whether the task is waiting for an approval decision.
func (t *Task) IsInReview() bool {
	return t.Status == TaskStatusReview
}

// IsAssignedTo checks if the task is assigned to the given profile.
func (t *Task) IsAssignedTo(profileID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == profileID
}
