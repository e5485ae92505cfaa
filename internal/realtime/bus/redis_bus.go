package bus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

const DefaultChannel = "chatrelay:relay"

// redisBus carries envelopes over one Redis pub/sub channel. Every instance
// subscribes, so each one sees every event and delivers to the viewers it holds.
type redisBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewRedisBus(rdb goredis.UniversalClient, channel string, log *logger.Logger) (Bus, error) {
	switch {
	case log == nil:
		return nil, errors.New("logger required")
	case rdb == nil:
		return nil, errors.New("redis client required")
	}
	if channel = strings.TrimSpace(channel); channel == "" {
		channel = DefaultChannel
	}
	return &redisBus{log: log.With("component", "RedisRelayBus", "channel", channel), rdb: rdb, channel: channel}, nil
}

func (b *redisBus) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder blocks until the subscription is confirmed, then hands each
// decoded envelope to onMsg from a background goroutine until ctx ends.
func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(env Envelope)) error {
	if onMsg == nil {
		return errors.New("onMsg callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	go b.forward(ctx, sub, onMsg)
	return nil
}

func (b *redisBus) forward(ctx context.Context, sub *goredis.PubSub, onMsg func(env Envelope)) {
	defer sub.Close()
	msgs := sub.Channel(goredis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				b.log.Warn("relay subscription closed")
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				b.log.Warn("dropping malformed relay envelope", "error", err)
				continue
			}
			onMsg(env)
		}
	}
}

// Close is a no-op; the shared Redis client is closed by its owner.
func (b *redisBus) Close() error { return nil }
