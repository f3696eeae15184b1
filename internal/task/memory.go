package task

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jkaninda/kazi/internal/domain"
)

// InMemoryStore implements Store without persistence. Tasks are lost on
// restart. Used in tests and when no database is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]domain.Task
	now    func() time.Time
}

// NewInMemoryStore creates an ephemeral task store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID: 1,
		tasks:  make(map[int64]domain.Task),
		now:    time.Now,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (s *InMemoryStore) SetNowFunc(now func() time.Time) { s.now = now }

func (s *InMemoryStore) Create(_ context.Context, t *domain.Task) error {
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextID
	s.nextID++
	now := s.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	s.tasks[t.ID] = cloneTask(*t)
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, userID string, id int64) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	cp := cloneTask(t)
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Task
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if !matchesFilter(t, filter) {
			continue
		}
		out = append(out, cloneTask(t))
	}
	SortTasks(out, filter.SortBy, filter.SortDesc)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, userID string, id int64, patch domain.TaskPatch) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		if err := ValidateTitle(*patch.Title); err != nil {
			return nil, err
		}
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Tags != nil {
		t.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.ClearDue {
		t.DueDate = nil
	} else if patch.DueDate != nil {
		due := patch.DueDate.UTC()
		t.DueDate = &due
	}
	if patch.Recurrence != nil {
		t.Recurrence = *patch.Recurrence
	}
	t.UpdatedAt = s.now().UTC()
	s.tasks[id] = cloneTask(t)
	return &t, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// ListRecurring returns every completed recurring task across all users.
// Used by the recurring-task generator; regular callers go through List.
func (s *InMemoryStore) ListRecurring(_ context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Task
	for _, t := range s.tasks {
		if t.Recurrence != "" && t.Completed {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func matchesFilter(t domain.Task, f domain.TaskFilter) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, tag := range t.Tags {
			if strings.EqualFold(tag, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SortTasks orders tasks in place. Unknown sortBy falls back to created_at.
// The default ordering is newest first; an explicit sortBy defaults to
// ascending unless desc is set.
func SortTasks(tasks []domain.Task, sortBy string, desc bool) {
	if sortBy == "" {
		sortBy = "created_at"
		desc = true
	}
	less := func(a, b domain.Task) bool {
		switch sortBy {
		case "due_date":
			// Tasks without a due date sort last.
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return a.ID < b.ID
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				return a.DueDate.Before(*b.DueDate)
			}
		case "priority":
			return priorityRank(a.Priority) < priorityRank(b.Priority)
		case "title":
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		default:
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

func priorityRank(p domain.Priority) int {
	switch p {
	case domain.PriorityHigh:
		return 0
	case domain.PriorityMedium:
		return 1
	default:
		return 2
	}
}

func cloneTask(t domain.Task) domain.Task {
	t.Tags = append([]string(nil), t.Tags...)
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)
