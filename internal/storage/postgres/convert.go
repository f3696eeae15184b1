package postgres

import (
	"encoding/json"

	"github.com/jkaninda/kazi/internal/domain"
)

func toTaskModel(t *domain.Task) TaskModel {
	return TaskModel{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		Tags:        encodeTags(t.Tags),
		DueDate:     t.DueDate,
		Recurrence:  string(t.Recurrence),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func fromTaskModel(m *TaskModel) domain.Task {
	return domain.Task{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		Completed:   m.Completed,
		Priority:    domain.Priority(m.Priority),
		Tags:        decodeTags(m.Tags),
		DueDate:     m.DueDate,
		Recurrence:  domain.Recurrence(m.Recurrence),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeTags(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func fromConversationModel(m *ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toMessageModel(msg *domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SeqNum:         msg.SeqNum,
		Role:           string(msg.Role),
		Content:        msg.Content,
		AgentName:      msg.AgentName,
		AgentIcon:      msg.AgentIcon,
		CreatedAt:      msg.CreatedAt,
	}
}

func fromMessageModel(m *MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SeqNum:         m.SeqNum,
		Role:           domain.Role(m.Role),
		Content:        m.Content,
		AgentName:      m.AgentName,
		AgentIcon:      m.AgentIcon,
		CreatedAt:      m.CreatedAt,
	}
}
