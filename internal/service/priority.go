package service

import (
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
)

const (
	// DefaultNearDeadlineDays is how many whole days before the due date a task turns High.
	DefaultNearDeadlineDays = 2
	// DefaultStaleAfterDays is how many whole days a Pending task may wait before it escalates.
	DefaultStaleAfterDays = 3
)

// PriorityRules holds the thresholds of the effective priority calculation.
type PriorityRules struct {
	NearDeadlineDays int
	StaleAfterDays   int
}

// DefaultPriorityRules returns the thresholds used when nothing is configured.
func DefaultPriorityRules() PriorityRules {
	return PriorityRules{
		NearDeadlineDays: DefaultNearDeadlineDays,
		StaleAfterDays:   DefaultStaleAfterDays,
	}
}

// Effective derives the priority shown for a task from its stored priority and
// the given instant. Rules are evaluated in order and the first match wins:
//
//   - Completed tasks keep their stored priority.
//   - A task past its due date is Critical.
//   - A task due within NearDeadlineDays whole days is High.
//   - A Pending task older than StaleAfterDays whole days moves one step up.
//
// The result is never written back to the task.
func (r PriorityRules) Effective(
	stored domain.TaskPriority,
	status domain.TaskStatus,
	dueDate *time.Time,
	createdAt time.Time,
	now time.Time,
) domain.TaskPriority {
	if status == domain.TaskStatusCompleted {
		return stored
	}

	if dueDate != nil {
		if now.After(*dueDate) {
			return domain.TaskPriorityCritical
		}
		if differenceInDays(*dueDate, now, now.Location()) <= r.NearDeadlineDays {
			return domain.TaskPriorityHigh
		}
	}

	if status == domain.TaskStatusPending && differenceInDays(now, createdAt, now.Location()) > r.StaleAfterDays {
		return stored.Escalate()
	}

	return stored
}

// EffectiveFor is Effective applied to a task.
func (r PriorityRules) EffectiveFor(task *domain.Task, now time.Time) domain.TaskPriority {
	return r.Effective(task.Priority, task.Status, task.DueDate, task.CreatedAt, now)
}

// EffectivePriority evaluates the default rules.
func EffectivePriority(
	stored domain.TaskPriority,
	status domain.TaskStatus,
	dueDate *time.Time,
	createdAt time.Time,
	now time.Time,
) domain.TaskPriority {
	return DefaultPriorityRules().Effective(stored, status, dueDate, createdAt, now)
}

// differenceInDays returns the number of full days between left and right,
// truncated toward zero. Both instants are read on the wall clock of loc, so a
// day boundary is a calendar boundary there and not a 24 hour window.
func differenceInDays(left, right time.Time, loc *time.Location) int {
	l := wallClock(left, loc)
	r := wallClock(right, loc)

	sign := l.Compare(r)
	if sign == 0 {
		return 0
	}

	days := calendarDays(l, r)
	if days < 0 {
		days = -days
	}

	// Step back by the calendar difference; if that overshoots, the last day was not full.
	notFull := 0
	if l.AddDate(0, 0, -sign*days).Compare(r) == -sign {
		notFull = 1
	}

	return sign * (days - notFull)
}

// calendarDays counts day boundaries between two wall-clock times.
func calendarDays(l, r time.Time) int {
	ld := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
	rd := time.Date(r.Year(), r.Month(), r.Day(), 0, 0, 0, 0, time.UTC)
	return int((ld.Unix() - rd.Unix()) / 86400)
}

// wallClock re-expresses t's local date and time in loc as a UTC value, so
// arithmetic on it ignores daylight saving jumps.
func wallClock(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
