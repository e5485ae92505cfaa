package bus

import (
	"context"

	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
)

// Relay publishes through the bus so every instance delivers to its own viewers.
// When the bus is unreachable it falls back to local delivery.
type Relay struct {
	bus   Bus
	local *realtime.Broadcaster
	log   *logger.Logger
}

func NewRelay(b Bus, local *realtime.Broadcaster, log *logger.Logger) *Relay {
	return &Relay{bus: b, local: local, log: log.With("component", "BusRelay")}
}

func (r *Relay) Publish(ctx context.Context, key realtime.Key, ev realtime.Event) {
	env := Envelope{ConversationID: key.ConversationID, ViewerID: key.ViewerID, Event: ev}
	if err := r.bus.Publish(ctx, env); err != nil {
		r.log.Warn("bus publish failed, delivering locally", "key", key.String(), "event", ev.Type, "error", err)
		r.local.Deliver(ctx, key, ev)
	}
}

// Forward starts delivering bus traffic to local connections until ctx is done.
func (r *Relay) Forward(ctx context.Context) error {
	return r.bus.StartForwarder(ctx, func(env Envelope) {
		r.local.Deliver(ctx, env.Key(), env.Event)
	})
}
