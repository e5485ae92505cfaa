// Package bus fans relay events out across service instances.
package bus

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/chatrelay-backend/internal/realtime"
)

// Envelope is one relay event addressed to a conversation viewer.
type Envelope struct {
	ConversationID uuid.UUID      `json:"conversation_id"`
	ViewerID       uuid.UUID      `json:"viewer_id"`
	Event          realtime.Event `json:"event"`
}

func (e Envelope) Key() realtime.Key {
	return realtime.Key{ConversationID: e.ConversationID, ViewerID: e.ViewerID}
}

type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	StartForwarder(ctx context.Context, onMsg func(env Envelope)) error
	Close() error
}
