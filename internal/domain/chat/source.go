package chat

import (
	"time"

	"github.com/google/uuid"
)

// Source is a citation attached to a generated message. The set for a message
// is always replaced as a whole.
type Source struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"message_id"`

	Identifier string  `gorm:"column:identifier;not null;default:''" json:"identifier"`
	Title      string  `gorm:"column:title;not null;default:''" json:"title"`
	Locator    *string `gorm:"column:locator" json:"locator,omitempty"`
	Content    *string `gorm:"column:content;type:text" json:"content,omitempty"`
	Position   int     `gorm:"column:position;not null;default:0" json:"position"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Source) TableName() string { return "source" }
