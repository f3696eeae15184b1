// Package domain defines cross-cutting entity types used across the system.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxTitleLen is the hard cap on task and conversation titles.
const MaxTitleLen = 200

// Priority is a task priority level. The zero value is invalid; callers
// normalize via ParsePriority.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority normalizes a user-supplied priority string. Matching is
// case-insensitive. ok is false for anything outside the closed set.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	default:
		return "", false
	}
}

// Recurrence is a task repetition schedule. Empty means one-shot.
type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// ParseRecurrence normalizes a user-supplied recurrence string. The empty
// string is valid and means no recurrence.
func ParseRecurrence(s string) (Recurrence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RecurrenceNone, true
	case "daily":
		return RecurrenceDaily, true
	case "weekly":
		return RecurrenceWeekly, true
	case "monthly":
		return RecurrenceMonthly, true
	default:
		return "", false
	}
}

// Task is a single todo item owned by one user. All reads and writes are
// scoped by UserID; a task is never visible outside its owner.
type Task struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	Tags        []string   `json:"tags"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Recurrence  Recurrence `json:"recurrence,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskFilter narrows a task listing. Nil / empty fields match everything.
// A task matches Tags only when it carries every listed tag.
type TaskFilter struct {
	Completed *bool
	Priority  Priority
	Tags      []string
	SortBy    string // "created_at", "due_date", "priority", "title".
	SortDesc  bool
	Limit     int // Maximum results after sorting. 0 = unlimited.
}

// TaskPatch is a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *Priority
	Tags        *[]string
	DueDate     *time.Time
	ClearDue    bool
	Recurrence  *Recurrence
}

// TaskAnalytics is an aggregate summary over one user's tasks.
type TaskAnalytics struct {
	Total          int              `json:"total"`
	Completed      int              `json:"completed"`
	Pending        int              `json:"pending"`
	CompletionRate float64          `json:"completion_rate"` // Percent, rounded to one decimal.
	ByPriority     map[Priority]int `json:"by_priority"`
	Overdue        int              `json:"overdue"`
	DueToday       int              `json:"due_today"`
}

// Conversation is a persistent conversational session between one user and
// the assistant.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is a conversation message author role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRole reports whether r is one of the three accepted roles.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Message is a single turn in a persisted conversation. AgentName and
// AgentIcon are set for assistant messages only; they are nulled for any
// other role before persistence.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SeqNum         int       `json:"seq_num"` // Monotonically increasing within conversation.
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	AgentName      string    `json:"agent_name,omitempty"`
	AgentIcon      string    `json:"agent_icon,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewID generates a new random UUID.
func NewID() uuid.UUID {
	return uuid.New()
}
