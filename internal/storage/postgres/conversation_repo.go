package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/kazi/internal/chat"
	"github.com/jkaninda/kazi/internal/domain"
)

// Compile-time interface check.
var _ chat.ConversationStore = (*ConversationRepository)(nil)

// ConversationRepository implements chat.ConversationStore with PostgreSQL.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a ConversationRepository.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateConversation creates a conversation for the user, or returns
// chat.ErrConversationLimit at the per-user ceiling. The count and insert
// share a transaction so concurrent creates cannot slip past the ceiling.
func (r *ConversationRepository) CreateConversation(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	model := ConversationModel{
		ID:        domain.NewID(),
		UserID:    userID,
		Title:     chat.TruncateTitle(title),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ConversationModel{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("counting conversations: %w", err)
		}
		if count >= chat.MaxConversationsPerUser {
			return chat.ErrConversationLimit
		}

		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("creating conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conv := fromConversationModel(&model)
	return &conv, nil
}

func (r *ConversationRepository) GetConversation(ctx context.Context, userID string, id uuid.UUID) (*domain.Conversation, error) {
	var model ConversationModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, chat.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	conv := fromConversationModel(&model)
	return &conv, nil
}

func (r *ConversationRepository) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var models []ConversationModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	out := make([]domain.Conversation, len(models))
	for i := range models {
		out[i] = fromConversationModel(&models[i])
	}
	return out, nil
}

func (r *ConversationRepository) UpdateTitle(ctx context.Context, userID string, id uuid.UUID, title string) error {
	res := r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"title":      chat.TruncateTitle(title),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("updating conversation title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return chat.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) DeleteConversation(ctx context.Context, userID string, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&ConversationModel{})
		if res.Error != nil {
			return fmt.Errorf("deleting conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return chat.ErrConversationNotFound
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return fmt.Errorf("deleting conversation messages: %w", err)
		}
		return nil
	})
}

// AppendMessage inserts a message, assigning its ID, sequence number, and
// timestamp, and bumps the conversation's updated_at. Agent attribution is
// only kept on assistant messages.
func (r *ConversationRepository) AppendMessage(ctx context.Context, userID string, msg *domain.Message) error {
	if !domain.ValidRole(msg.Role) {
		return chat.ErrInvalidRole
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv ConversationModel
		err := tx.Where("id = ? AND user_id = ?", msg.ConversationID, userID).First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.ErrConversationNotFound
		}
		if err != nil {
			return fmt.Errorf("looking up conversation: %w", err)
		}

		var maxSeq int
		err = tx.Model(&MessageModel{}).
			Where("conversation_id = ?", msg.ConversationID).
			Select("COALESCE(MAX(seq_num), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return fmt.Errorf("getting max seq_num: %w", err)
		}

		now := time.Now().UTC()
		msg.ID = domain.NewID()
		msg.SeqNum = maxSeq + 1
		msg.CreatedAt = now
		if msg.Role != domain.RoleAssistant {
			msg.AgentName = ""
			msg.AgentIcon = ""
		}

		model := toMessageModel(msg)
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}

		err = tx.Model(&ConversationModel{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", now).Error
		if err != nil {
			return fmt.Errorf("touching conversation: %w", err)
		}
		return nil
	})
}

func (r *ConversationRepository) ListMessages(ctx context.Context, userID string, convID uuid.UUID) ([]domain.Message, error) {
	if _, err := r.GetConversation(ctx, userID, convID); err != nil {
		return nil, err
	}

	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("seq_num ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	out := make([]domain.Message, len(models))
	for i := range models {
		out[i] = fromMessageModel(&models[i])
	}
	return out, nil
}

// LoadRecent returns the window messages preceding the newest one, ordered
// oldest-first. The newest message is skipped (it is the in-flight user
// message); the query fetches newest-first with an offset and limit, then
// reverses in Go.
func (r *ConversationRepository) LoadRecent(ctx context.Context, userID string, convID uuid.UUID, window int) ([]domain.Message, error) {
	if _, err := r.GetConversation(ctx, userID, convID); err != nil {
		return nil, err
	}

	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("seq_num DESC").
		Offset(1).
		Limit(chat.ClampWindow(window)).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("loading recent messages: %w", err)
	}

	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}

	out := make([]domain.Message, len(models))
	for i := range models {
		out[i] = fromMessageModel(&models[i])
	}
	return out, nil
}
