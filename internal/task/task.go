// Package task defines the task store contract and the aggregate analytics
// computation shared by the tool layer, the HTTP gateway, and the scheduler.
package task

import (
	"context"
	"errors"
	"math"
	"time"
	"unicode/utf8"

	"github.com/jkaninda/kazi/internal/domain"
)

// ErrNotFound covers both a missing task and a task owned by someone else.
// The two cases are deliberately indistinguishable to callers.
var ErrNotFound = errors.New("task not found or access denied")

// ErrInvalidTitle is returned for an empty title or one over the length cap.
var ErrInvalidTitle = errors.New("title must be 1-200 characters")

// Store provides user-scoped task persistence. Every operation takes the
// owning userID; implementations must never return another user's task.
type Store interface {
	// Create persists a new task and fills in its ID and timestamps.
	Create(ctx context.Context, t *domain.Task) error
	// GetByID returns the task, or ErrNotFound when it does not exist or
	// belongs to another user.
	GetByID(ctx context.Context, userID string, id int64) (*domain.Task, error)
	// List returns the user's tasks narrowed by filter, newest first unless
	// the filter says otherwise.
	List(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error)
	// Update applies a partial patch. Nil patch fields are left untouched.
	Update(ctx context.Context, userID string, id int64, patch domain.TaskPatch) (*domain.Task, error)
	// Delete removes the task, or returns ErrNotFound.
	Delete(ctx context.Context, userID string, id int64) error
}

// ValidateTitle enforces the shared title constraint. The cap counts
// characters, not bytes, so multi-byte scripts get the full 200.
func ValidateTitle(title string) error {
	if title == "" || utf8.RuneCountInString(title) > domain.MaxTitleLen {
		return ErrInvalidTitle
	}
	return nil
}

// ComputeAnalytics summarizes a slice of tasks. now anchors the overdue and
// due-today buckets; both compare in UTC calendar days.
func ComputeAnalytics(tasks []domain.Task, now time.Time) domain.TaskAnalytics {
	a := domain.TaskAnalytics{
		Total: len(tasks),
		ByPriority: map[domain.Priority]int{
			domain.PriorityHigh:   0,
			domain.PriorityMedium: 0,
			domain.PriorityLow:    0,
		},
	}

	today := now.UTC().Truncate(24 * time.Hour)
	for _, t := range tasks {
		if t.Completed {
			a.Completed++
		} else {
			a.Pending++
		}
		a.ByPriority[t.Priority]++
		if t.DueDate == nil || t.Completed {
			continue
		}
		due := t.DueDate.UTC()
		dueDay := due.Truncate(24 * time.Hour)
		if dueDay.Equal(today) {
			a.DueToday++
		}
		if due.Before(now.UTC()) {
			a.Overdue++
		}
	}

	if a.Total > 0 {
		rate := float64(a.Completed) / float64(a.Total) * 100
		a.CompletionRate = math.Round(rate*10) / 10
	}
	return a
}
