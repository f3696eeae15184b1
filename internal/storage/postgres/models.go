package postgres

import (
	"time"

	"github.com/google/uuid"
)

// TaskModel maps to the "tasks" table.
type TaskModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Completed   bool   `gorm:"not null;default:false;index"`
	Priority    string `gorm:"not null;default:'Medium'"`
	// Tags is a JSON-encoded string array. TEXT keeps the column portable
	// between PostgreSQL and SQLite.
	Tags       string `gorm:"type:text;not null;default:'[]'"`
	DueDate    *time.Time
	Recurrence string `gorm:"not null;default:''"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (TaskModel) TableName() string { return "tasks" }

// ConversationModel maps to the "conversations" table.
type ConversationModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Title     string    `gorm:"not null;default:''"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}

func (ConversationModel) TableName() string { return "conversations" }

// MessageModel maps to the "messages" table.
// SeqNum is assigned transactionally in AppendMessage and is monotonically
// increasing within a conversation.
type MessageModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conv_seq,priority:1"`
	SeqNum         int       `gorm:"not null;index:idx_messages_conv_seq,priority:2"`
	Role           string    `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	AgentName      string    `gorm:"not null;default:''"`
	AgentIcon      string    `gorm:"not null;default:''"`
	CreatedAt      time.Time
}

func (MessageModel) TableName() string { return "messages" }
