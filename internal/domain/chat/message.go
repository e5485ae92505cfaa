package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	KindUser      = "user"
	KindGenerated = "generated"
	KindSystem    = "system"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// FailedPlaceholder replaces the content of a generated message whose request never reached the service.
const FailedPlaceholder = "Sorry, I'm having trouble processing your request right now. Please try again later."

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`

	Kind    string `gorm:"column:kind;not null;index" json:"kind"`
	Status  string `gorm:"column:status;not null;index" json:"status"`
	Content string `gorm:"column:content;type:text;not null;default:''" json:"content"`

	Sources   []Source      `gorm:"foreignKey:MessageID" json:"sources"`
	Reactions []Reaction    `gorm:"foreignKey:MessageID" json:"reactions"`
	Files     []MessageFile `gorm:"foreignKey:MessageID" json:"files"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Message) TableName() string { return "message" }

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

func (m *Message) IsTerminal() bool { return IsTerminalStatus(m.Status) }

// OpenStatuses are the states from which finalization or failure may still happen.
var OpenStatuses = []string{StatusPending, StatusProcessing}
