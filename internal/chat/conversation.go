package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jkaninda/kazi/internal/domain"
)

// Conversation policy shared by every store implementation.
const (
	// MaxConversationsPerUser is the per-user ceiling. Creating past it
	// fails with ErrConversationLimit.
	MaxConversationsPerUser = 100

	// DefaultContextWindow is the number of history messages handed to the
	// model when the caller does not say otherwise.
	DefaultContextWindow = 6

	// MaxContextWindow caps the history window regardless of what the
	// caller asks for.
	MaxContextWindow = 20

	// titleLimit is the generated-title length before the ellipsis.
	titleLimit = 50
)

// ErrConversationNotFound covers both a missing conversation and one owned
// by another user.
var ErrConversationNotFound = errors.New("conversation not found or access denied")

// ErrConversationLimit is returned by CreateConversation when the user
// already owns MaxConversationsPerUser conversations.
var ErrConversationLimit = errors.New("conversation limit reached (100 per user)")

// ErrInvalidRole is returned when a message role is outside the accepted set.
var ErrInvalidRole = errors.New("role must be user, assistant, or system")

// ConversationStore persists conversations and their messages, scoped by
// user. Implementations enforce the per-user ceiling on create and assign
// message sequence numbers.
type ConversationStore interface {
	// CreateConversation creates a conversation, or returns
	// ErrConversationLimit when the user is at the ceiling.
	CreateConversation(ctx context.Context, userID, title string) (*domain.Conversation, error)
	// GetConversation returns the conversation, or ErrConversationNotFound
	// when it does not exist or belongs to another user.
	GetConversation(ctx context.Context, userID string, id uuid.UUID) (*domain.Conversation, error)
	// ListConversations returns the user's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	// UpdateTitle renames a conversation. Titles are truncated to the
	// domain limit.
	UpdateTitle(ctx context.Context, userID string, id uuid.UUID, title string) error
	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, userID string, id uuid.UUID) error

	// AppendMessage persists a message, assigning its ID, sequence number,
	// and timestamp, and bumping the conversation's updated_at. Agent
	// fields are nulled unless the role is assistant.
	AppendMessage(ctx context.Context, userID string, msg *domain.Message) error
	// ListMessages returns every message in the conversation, oldest first.
	ListMessages(ctx context.Context, userID string, convID uuid.UUID) ([]domain.Message, error)
	// LoadRecent returns the window messages preceding the conversation's
	// newest one, oldest first. The newest message is excluded: it is the
	// turn's in-flight user message, persisted by the transport before the
	// runtime reads history. The window is clamped via ClampWindow.
	LoadRecent(ctx context.Context, userID string, convID uuid.UUID, window int) ([]domain.Message, error)
}

// ClampWindow bounds a requested context window to [1, MaxContextWindow].
// Zero and negative values clamp to 1, not to the default; callers that
// want the default pass DefaultContextWindow explicitly.
func ClampWindow(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxContextWindow {
		return MaxContextWindow
	}
	return n
}

// GenerateTitle derives a conversation title from its first user message:
// the first 50 characters, with an ellipsis when the message is longer.
func GenerateTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit]) + "..."
}

// TruncateTitle enforces the storage limit on manually set titles.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= domain.MaxTitleLen {
		return title
	}
	return string(runes[:domain.MaxTitleLen])
}
