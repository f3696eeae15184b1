package task

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jkaninda/kazi/internal/domain"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		ok    bool
	}{
		{"empty", "", false},
		{"simple", "buy milk", true},
		{"at cap", strings.Repeat("a", domain.MaxTitleLen), true},
		{"over cap", strings.Repeat("a", domain.MaxTitleLen+1), false},
		// 200 multi-byte characters is well over 200 bytes but still valid.
		{"multi-byte at cap", strings.Repeat("ی", domain.MaxTitleLen), true},
		{"multi-byte over cap", strings.Repeat("ی", domain.MaxTitleLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitle(tt.title)
			if tt.ok && err != nil {
				t.Errorf("ValidateTitle: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTitle) {
				t.Errorf("err = %v, want ErrInvalidTitle", err)
			}
		})
	}
}

func newTestStore(t *testing.T) (*InMemoryStore, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewInMemoryStore()
	s.SetNowFunc(func() time.Time { return now })
	return s, now
}

func mustCreate(t *testing.T, s *InMemoryStore, userID, title string, mut func(*domain.Task)) *domain.Task {
	t.Helper()
	tk := &domain.Task{UserID: userID, Title: title, Priority: domain.PriorityMedium}
	if mut != nil {
		mut(tk)
	}
	if err := s.Create(context.Background(), tk); err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return tk
}

func TestCreateAssignsIDsAndDefaults(t *testing.T) {
	s, now := newTestStore(t)

	tk := &domain.Task{UserID: "u1", Title: "buy milk"}
	if err := s.Create(context.Background(), tk); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk.ID != 1 {
		t.Errorf("ID = %d, want 1", tk.ID)
	}
	if tk.Priority != domain.PriorityMedium {
		t.Errorf("Priority = %q, want Medium", tk.Priority)
	}
	if !tk.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", tk.CreatedAt, now)
	}

	second := mustCreate(t, s, "u1", "walk dog", nil)
	if second.ID != 2 {
		t.Errorf("second ID = %d, want 2", second.ID)
	}
}

func TestCreateRejectsBadTitle(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Create(context.Background(), &domain.Task{UserID: "u1"}); !errors.Is(err, ErrInvalidTitle) {
		t.Errorf("empty title: err = %v, want ErrInvalidTitle", err)
	}
	long := make([]byte, domain.MaxTitleLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := s.Create(context.Background(), &domain.Task{UserID: "u1", Title: string(long)}); !errors.Is(err, ErrInvalidTitle) {
		t.Errorf("long title: err = %v, want ErrInvalidTitle", err)
	}
}

func TestUserScoping(t *testing.T) {
	s, _ := newTestStore(t)
	mine := mustCreate(t, s, "u1", "mine", nil)

	if _, err := s.GetByID(context.Background(), "u2", mine.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign GetByID: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetByID(context.Background(), "u1", 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing GetByID: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), "u2", mine.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign Delete: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Update(context.Background(), "u2", mine.ID, domain.TaskPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign Update: err = %v, want ErrNotFound", err)
	}
}

func TestListFilters(t *testing.T) {
	s, _ := newTestStore(t)
	done := true
	mustCreate(t, s, "u1", "a", func(tk *domain.Task) {
		tk.Completed = true
		tk.Priority = domain.PriorityHigh
		tk.Tags = []string{"work"}
	})
	mustCreate(t, s, "u1", "b", func(tk *domain.Task) {
		tk.Tags = []string{"home"}
	})
	mustCreate(t, s, "u2", "other", nil)

	all, err := s.List(context.Background(), "u1", domain.TaskFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List = %d tasks, want 2", len(all))
	}

	completed, _ := s.List(context.Background(), "u1", domain.TaskFilter{Completed: &done})
	if len(completed) != 1 || completed[0].Title != "a" {
		t.Errorf("completed filter = %v", completed)
	}
	high, _ := s.List(context.Background(), "u1", domain.TaskFilter{Priority: domain.PriorityHigh})
	if len(high) != 1 || high[0].Title != "a" {
		t.Errorf("priority filter = %v", high)
	}
	tagged, _ := s.List(context.Background(), "u1", domain.TaskFilter{Tags: []string{"HOME"}})
	if len(tagged) != 1 || tagged[0].Title != "b" {
		t.Errorf("tag filter (case-insensitive) = %v", tagged)
	}
	// Every listed tag must be present.
	none, _ := s.List(context.Background(), "u1", domain.TaskFilter{Tags: []string{"home", "work"}})
	if len(none) != 0 {
		t.Errorf("multi-tag filter = %v, want none", none)
	}

	limited, _ := s.List(context.Background(), "u1", domain.TaskFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit filter = %d tasks, want 1", len(limited))
	}
}

func TestSortTasks(t *testing.T) {
	due1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	due2 := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{ID: 1, Title: "beta", Priority: domain.PriorityLow, DueDate: &due2},
		{ID: 2, Title: "alpha", Priority: domain.PriorityHigh},
		{ID: 3, Title: "gamma", Priority: domain.PriorityMedium, DueDate: &due1},
	}

	SortTasks(tasks, "priority", false)
	if tasks[0].ID != 2 || tasks[1].ID != 3 || tasks[2].ID != 1 {
		t.Errorf("priority sort order = %d,%d,%d", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}

	SortTasks(tasks, "due_date", false)
	// Missing due dates sort last.
	if tasks[0].ID != 3 || tasks[1].ID != 1 || tasks[2].ID != 2 {
		t.Errorf("due_date sort order = %d,%d,%d", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}

	SortTasks(tasks, "title", false)
	if tasks[0].Title != "alpha" || tasks[2].Title != "gamma" {
		t.Errorf("title sort order = %s,%s,%s", tasks[0].Title, tasks[1].Title, tasks[2].Title)
	}
}

func TestUpdatePatchSemantics(t *testing.T) {
	s, _ := newTestStore(t)
	tk := mustCreate(t, s, "u1", "original", func(tk *domain.Task) {
		tk.Description = "desc"
		tk.Tags = []string{"a"}
	})

	title := "renamed"
	high := domain.PriorityHigh
	updated, err := s.Update(context.Background(), "u1", tk.ID, domain.TaskPatch{Title: &title, Priority: &high})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "renamed" || updated.Priority != domain.PriorityHigh {
		t.Errorf("Update result = %+v", updated)
	}
	if updated.Description != "desc" || len(updated.Tags) != 1 {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.Update(context.Background(), "u1", tk.ID, domain.TaskPatch{DueDate: &due}); err != nil {
		t.Fatalf("Update due: %v", err)
	}
	cleared, err := s.Update(context.Background(), "u1", tk.ID, domain.TaskPatch{ClearDue: true})
	if err != nil {
		t.Fatalf("Update clear due: %v", err)
	}
	if cleared.DueDate != nil {
		t.Errorf("DueDate not cleared: %v", cleared.DueDate)
	}
}

func TestComputeAnalytics(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	laterToday := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	tasks := []domain.Task{
		{Priority: domain.PriorityHigh, Completed: true},
		{Priority: domain.PriorityMedium, DueDate: &yesterday},
		{Priority: domain.PriorityMedium, DueDate: &laterToday},
	}
	a := ComputeAnalytics(tasks, now)

	if a.Total != 3 || a.Completed != 1 || a.Pending != 2 {
		t.Errorf("counts = %d/%d/%d", a.Total, a.Completed, a.Pending)
	}
	if a.CompletionRate != 33.3 {
		t.Errorf("CompletionRate = %v, want 33.3", a.CompletionRate)
	}
	if a.ByPriority[domain.PriorityHigh] != 1 || a.ByPriority[domain.PriorityMedium] != 2 || a.ByPriority[domain.PriorityLow] != 0 {
		t.Errorf("ByPriority = %v", a.ByPriority)
	}
	if a.Overdue != 1 {
		t.Errorf("Overdue = %d, want 1", a.Overdue)
	}
	if a.DueToday != 1 {
		t.Errorf("DueToday = %d, want 1", a.DueToday)
	}
}

func TestComputeAnalyticsEmpty(t *testing.T) {
	a := ComputeAnalytics(nil, time.Now())
	if a.Total != 0 || a.CompletionRate != 0 {
		t.Errorf("empty analytics = %+v", a)
	}
}
