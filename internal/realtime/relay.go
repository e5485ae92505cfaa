package realtime

import (
	"context"

	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

// Relay publishes an event to every live connection of a viewer on a conversation.
type Relay interface {
	Publish(ctx context.Context, key Key, ev Event)
}

// Broadcaster is the in-process Relay over a Registry.
type Broadcaster struct {
	reg     *Registry
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewBroadcaster(reg *Registry, log *logger.Logger, metrics *observability.Metrics) *Broadcaster {
	return &Broadcaster{reg: reg, log: log.With("component", "Broadcaster"), metrics: metrics}
}

func (b *Broadcaster) Publish(ctx context.Context, key Key, ev Event) {
	b.Deliver(ctx, key, ev)
}

// Deliver sends ev to each connection in key's snapshot and returns how many sends
// succeeded. A failing connection never stops delivery to the others.
func (b *Broadcaster) Deliver(ctx context.Context, key Key, ev Event) int {
	conns := b.reg.Snapshot(key)
	if len(conns) == 0 {
		b.log.Debug("no live connections for key", "key", key.String(), "event", ev.Type)
		b.metrics.IncRelayNoViewers(ev.Type)
		return 0
	}
	delivered := 0
	for _, c := range conns {
		if err := c.Send(ctx, ev); err != nil {
			b.log.Warn("relay send failed", "key", key.String(), "conn_id", c.ID(), "event", ev.Type, "error", err)
			b.metrics.IncRelayFailed(ev.Type)
			continue
		}
		delivered++
		b.metrics.IncRelayDelivered(ev.Type)
	}
	if delivered == 0 {
		b.log.Warn("relay reached no connections", "key", key.String(), "event", ev.Type, "connections", len(conns))
	}
	return delivered
}
