package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jkaninda/kazi/internal/domain"
	"github.com/jkaninda/kazi/internal/task"
)

// Compile-time interface check.
var _ task.Store = (*TaskRepository)(nil)

// TaskRepository implements task.Store with PostgreSQL.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	if err := task.ValidateTitle(t.Title); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}

	model := toTaskModel(t)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	t.ID = model.ID
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, userID string, id int64) (*domain.Task, error) {
	var model TaskModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	t := fromTaskModel(&model)
	return &t, nil
}

func (r *TaskRepository) List(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", string(filter.Priority))
	}

	var models []TaskModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	var out []domain.Task
	for i := range models {
		t := fromTaskModel(&models[i])
		if !hasAllTags(t.Tags, filter.Tags) {
			continue
		}
		out = append(out, t)
	}

	// Sorting happens in Go so ordering matches the in-memory store exactly
	// (nil due dates last, priority rank, case-insensitive titles). The
	// limit applies after sorting for the same reason.
	task.SortTasks(out, filter.SortBy, filter.SortDesc)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *TaskRepository) Update(ctx context.Context, userID string, id int64, patch domain.TaskPatch) (*domain.Task, error) {
	var updated domain.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model TaskModel
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return task.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading task for update: %w", err)
		}

		t := fromTaskModel(&model)
		if patch.Title != nil {
			if err := task.ValidateTitle(*patch.Title); err != nil {
				return err
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
		t.UpdatedAt = time.Now().UTC()

		model = toTaskModel(&t)
		// Select("*") forces zero values (cleared due date, false completed)
		// to be written instead of skipped.
		if err := tx.Model(&TaskModel{}).Where("id = ?", id).Select("*").Omit("id", "created_at").Updates(&model).Error; err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListRecurring returns every completed recurring task across all users.
// Used by the recurring-task generator; regular callers go through List.
func (r *TaskRepository) ListRecurring(ctx context.Context) ([]domain.Task, error) {
	var models []TaskModel
	err := r.db.WithContext(ctx).
		Where("recurrence <> '' AND completed = ?", true).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing recurring tasks: %w", err)
	}

	out := make([]domain.Task, len(models))
	for i := range models {
		out[i] = fromTaskModel(&models[i])
	}
	return out, nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID string, id int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&TaskModel{})
	if res.Error != nil {
		return fmt.Errorf("deleting task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrNotFound
	}
	return nil
}

func hasAllTags(tags, wanted []string) bool {
	for _, want := range wanted {
		found := false
		for _, tag := range tags {
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
