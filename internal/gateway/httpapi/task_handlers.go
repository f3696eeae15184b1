package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jkaninda/kazi/internal/domain"
	"github.com/jkaninda/kazi/internal/task"
	"github.com/jkaninda/okapi"
)

// TaskRequest is the JSON body for POST /v1/tasks and PUT /v1/tasks/{id}.
// On update, absent fields are left untouched; an empty due_date string
// clears the due date.
type TaskRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	DueDate     *string   `json:"due_date,omitempty"` // RFC3339 or YYYY-MM-DD.
	Recurrence  *string   `json:"recurrence,omitempty"`
}

// TaskResponse is the JSON shape of a task.
type TaskResponse = domain.Task

// TaskListResponse is the JSON response for GET /v1/tasks.
type TaskListResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Count int           `json:"count"`
}

// AnalyticsResponse is the JSON response for GET /v1/tasks/analytics.
type AnalyticsResponse = domain.TaskAnalytics

func (g *Gateway) handleTaskCreate(c *okapi.Context) error {
	userID := c.GetString("userID")

	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.Title == nil || *req.Title == "" {
		return c.AbortBadRequest("title is required")
	}

	t := domain.Task{
		UserID: userID,
		Title:  *req.Title,
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil && *req.Priority != "" {
		p, ok := domain.ParsePriority(*req.Priority)
		if !ok {
			return c.AbortBadRequest("priority must be High, Medium, or Low")
		}
		t.Priority = p
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return c.AbortBadRequest("due_date must be RFC3339 or YYYY-MM-DD")
		}
		t.DueDate = &due
	}
	if req.Recurrence != nil && *req.Recurrence != "" {
		rec, ok := domain.ParseRecurrence(*req.Recurrence)
		if !ok {
			return c.AbortBadRequest("recurrence must be daily, weekly, or monthly")
		}
		t.Recurrence = rec
	}

	if err := g.tasks.Create(c.Context(), &t); err != nil {
		if errors.Is(err, task.ErrInvalidTitle) {
			return c.AbortBadRequest(err.Error())
		}
		g.logger.Error("task create failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return c.AbortInternalServerError("could not create task")
	}

	return c.JSON(http.StatusCreated, t)
}

func (g *Gateway) handleTaskList(c *okapi.Context) error {
	userID := c.GetString("userID")

	filter, err := parseTaskFilter(c.Request().URL.Query())
	if err != nil {
		return c.AbortBadRequest(err.Error())
	}

	tasks, err := g.tasks.List(c.Context(), userID, filter)
	if err != nil {
		g.logger.Error("task list failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return c.AbortInternalServerError("could not list tasks")
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}

	return c.OK(TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

func (g *Gateway) handleTaskGet(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.AbortBadRequest("task id must be an integer")
	}

	t, err := g.tasks.GetByID(c.Context(), userID, id)
	if err != nil {
		return taskError(c, err)
	}
	return c.OK(t)
}

func (g *Gateway) handleTaskUpdate(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.AbortBadRequest("task id must be an integer")
	}

	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	patch := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Tags:        req.Tags,
	}
	if req.Priority != nil {
		p, ok := domain.ParsePriority(*req.Priority)
		if !ok {
			return c.AbortBadRequest("priority must be High, Medium, or Low")
		}
		patch.Priority = &p
	}
	if req.Recurrence != nil {
		rec, ok := domain.ParseRecurrence(*req.Recurrence)
		if !ok {
			return c.AbortBadRequest("recurrence must be daily, weekly, or monthly")
		}
		patch.Recurrence = &rec
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			patch.ClearDue = true
		} else {
			due, err := parseDueDate(*req.DueDate)
			if err != nil {
				return c.AbortBadRequest("due_date must be RFC3339 or YYYY-MM-DD")
			}
			patch.DueDate = &due
		}
	}

	t, err := g.tasks.Update(c.Context(), userID, id, patch)
	if err != nil {
		return taskError(c, err)
	}
	return c.OK(t)
}

// handleTaskToggleComplete flips the completion state and returns the
// updated task.
func (g *Gateway) handleTaskToggleComplete(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.AbortBadRequest("task id must be an integer")
	}

	t, err := g.tasks.GetByID(c.Context(), userID, id)
	if err != nil {
		return taskError(c, err)
	}
	toggled := !t.Completed
	updated, err := g.tasks.Update(c.Context(), userID, id, domain.TaskPatch{Completed: &toggled})
	if err != nil {
		return taskError(c, err)
	}
	return c.OK(updated)
}

func (g *Gateway) handleTaskDelete(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.AbortBadRequest("task id must be an integer")
	}

	if err := g.tasks.Delete(c.Context(), userID, id); err != nil {
		return taskError(c, err)
	}
	return c.JSON(http.StatusNoContent, nil)
}

func (g *Gateway) handleTaskAnalytics(c *okapi.Context) error {
	userID := c.GetString("userID")

	tasks, err := g.tasks.List(c.Context(), userID, domain.TaskFilter{})
	if err != nil {
		g.logger.Error("task analytics failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return c.AbortInternalServerError("could not compute analytics")
	}
	return c.OK(task.ComputeAnalytics(tasks, time.Now()))
}

func taskError(c *okapi.Context, err error) error {
	switch {
	case errors.Is(err, task.ErrNotFound):
		return c.JSON(http.StatusNotFound, okapi.M{"error": err.Error()})
	case errors.Is(err, task.ErrInvalidTitle):
		return c.AbortBadRequest(err.Error())
	default:
		return c.AbortInternalServerError("task operation failed")
	}
}

// parseTaskFilter builds a TaskFilter from list query parameters.
func parseTaskFilter(q map[string][]string) (domain.TaskFilter, error) {
	var filter domain.TaskFilter

	if v := first(q, "completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("completed must be true or false")
		}
		filter.Completed = &b
	}
	if v := first(q, "priority"); v != "" {
		p, ok := domain.ParsePriority(v)
		if !ok {
			return filter, fmt.Errorf("priority must be High, Medium, or Low")
		}
		filter.Priority = p
	}
	// Repeatable: every tag must be present on a matching task.
	for _, v := range q["tag"] {
		if v != "" {
			filter.Tags = append(filter.Tags, v)
		}
	}

	switch v := first(q, "sort_by"); v {
	case "", "created_at", "due_date", "priority", "title":
		filter.SortBy = v
	default:
		return filter, fmt.Errorf("sort_by must be created_at, due_date, priority, or title")
	}

	switch v := first(q, "order"); v {
	case "", "asc":
	case "desc":
		filter.SortDesc = true
	default:
		return filter, fmt.Errorf("order must be asc or desc")
	}

	return filter, nil
}

func first(q map[string][]string, key string) string {
	if vs := q[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseDueDate accepts RFC3339 timestamps or bare dates.
func parseDueDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
