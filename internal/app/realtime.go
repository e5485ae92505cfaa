package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
	"github.com/yungbote/chatrelay-backend/internal/realtime/bus"
	"github.com/yungbote/chatrelay-backend/internal/realtime/chunkstore"
)

type Realtime struct {
	Registry    *realtime.Registry
	Broadcaster *realtime.Broadcaster
	// Relay is the Broadcaster itself or, with RELAY_BUS=redis, a bus-backed relay.
	Relay    realtime.Relay
	BusRelay *bus.Relay
	Bus      bus.Bus
	Chunks   chunkstore.Store
	Reaper   *realtime.Reaper
}

func wireRealtime(log *logger.Logger, cfg Config, clients Clients, metrics *observability.Metrics) (Realtime, error) {
	log.Info("Wiring realtime...")
	reg := realtime.NewRegistry(log, time.Now)
	bc := realtime.NewBroadcaster(reg, log, metrics)
	rt := Realtime{
		Registry:    reg,
		Broadcaster: bc,
		Relay:       bc,
		Reaper:      realtime.NewReaper(reg, cfg.ReaperInterval, cfg.ReaperInactivity, log, metrics),
	}

	if clients.Redis != nil {
		rt.Chunks = chunkstore.NewRedis(clients.Redis, cfg.ChunkTTL, log)
	} else {
		rt.Chunks = chunkstore.NewMemory(cfg.ChunkTTL)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.RelayBus)) {
	case "", RelayBusLocal:
	case RelayBusRedis:
		if clients.Redis == nil {
			return Realtime{}, fmt.Errorf("RELAY_BUS=redis requires REDIS_ADDR")
		}
		b, err := bus.NewRedisBus(clients.Redis, cfg.RedisChannel, log)
		if err != nil {
			return Realtime{}, fmt.Errorf("init relay bus: %w", err)
		}
		rt.Bus = b
		rt.BusRelay = bus.NewRelay(b, bc, log)
		rt.Relay = rt.BusRelay
	default:
		return Realtime{}, fmt.Errorf("unknown RELAY_BUS %q", cfg.RelayBus)
	}
	return rt, nil
}
