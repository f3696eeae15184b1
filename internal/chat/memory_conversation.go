package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/kazi/internal/domain"
)

// InMemoryConversationStore implements ConversationStore without
// persistence. History is lost on restart. Used in tests and when no
// database is configured.
type InMemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*domain.Conversation
	messages      map[uuid.UUID][]domain.Message
	now           func() time.Time
}

// NewInMemoryConversationStore creates an ephemeral conversation store.
func NewInMemoryConversationStore() *InMemoryConversationStore {
	return &InMemoryConversationStore{
		conversations: make(map[uuid.UUID]*domain.Conversation),
		messages:      make(map[uuid.UUID][]domain.Message),
		now:           time.Now,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (s *InMemoryConversationStore) SetNowFunc(now func() time.Time) { s.now = now }

func (s *InMemoryConversationStore) CreateConversation(_ context.Context, userID, title string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, c := range s.conversations {
		if c.UserID == userID {
			count++
		}
	}
	if count >= MaxConversationsPerUser {
		return nil, ErrConversationLimit
	}

	now := s.now().UTC()
	conv := &domain.Conversation{
		ID:        domain.NewID(),
		UserID:    userID,
		Title:     TruncateTitle(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	cp := *conv
	return &cp, nil
}

func (s *InMemoryConversationStore) GetConversation(_ context.Context, userID string, id uuid.UUID) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(userID, id)
}

func (s *InMemoryConversationStore) get(userID string, id uuid.UUID) (*domain.Conversation, error) {
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return nil, ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryConversationStore) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryConversationStore) UpdateTitle(_ context.Context, userID string, id uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return ErrConversationNotFound
	}
	c.Title = TruncateTitle(title)
	c.UpdatedAt = s.now().UTC()
	return nil
}

func (s *InMemoryConversationStore) DeleteConversation(_ context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return ErrConversationNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *InMemoryConversationStore) AppendMessage(_ context.Context, userID string, msg *domain.Message) error {
	if !domain.ValidRole(msg.Role) {
		return ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[msg.ConversationID]
	if !ok || c.UserID != userID {
		return ErrConversationNotFound
	}

	if msg.Role != domain.RoleAssistant {
		msg.AgentName = ""
		msg.AgentIcon = ""
	}
	msg.ID = domain.NewID()
	msg.SeqNum = len(s.messages[msg.ConversationID]) + 1
	msg.CreatedAt = s.now().UTC()

	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	c.UpdatedAt = msg.CreatedAt
	return nil
}

func (s *InMemoryConversationStore) ListMessages(_ context.Context, userID string, convID uuid.UUID) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.get(userID, convID); err != nil {
		return nil, err
	}
	msgs := s.messages[convID]
	cp := make([]domain.Message, len(msgs))
	copy(cp, msgs)
	return cp, nil
}

func (s *InMemoryConversationStore) LoadRecent(_ context.Context, userID string, convID uuid.UUID, window int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.get(userID, convID); err != nil {
		return nil, err
	}
	msgs := s.messages[convID]
	// The newest message is the in-flight one; history starts before it.
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	window = ClampWindow(window)
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	cp := make([]domain.Message, len(msgs))
	copy(cp, msgs)
	return cp, nil
}

// Compile-time interface check.
var _ ConversationStore = (*InMemoryConversationStore)(nil)
