package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const DefaultConversationTitle = "New chat"

type Conversation struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title string `gorm:"column:title;not null" json:"title"`

	// Classification and follow-up suggestions are advisory; the generation service
	// replaces them wholesale on every cycle.
	Categories    datatypes.JSONSlice[string] `gorm:"column:categories" json:"categories"`
	SubCategories datatypes.JSONSlice[string] `gorm:"column:sub_categories" json:"sub_categories"`
	Suggestions   datatypes.JSONSlice[string] `gorm:"column:suggestions" json:"suggestions"`

	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversation" }

// HasDefaultTitle reports whether the title may still be replaced by a generated one.
func (c *Conversation) HasDefaultTitle() bool {
	return c.Title == "" || c.Title == DefaultConversationTitle
}
