package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

type Reaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"message_id"`
	Type      string    `gorm:"column:reaction_type;not null" json:"reaction_type"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Reaction) TableName() string { return "reaction" }

func ValidReaction(t string) bool { return t == ReactionLike || t == ReactionDislike }
