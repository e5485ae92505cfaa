package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatrelay-backend/internal/clients/generation"
	"github.com/yungbote/chatrelay-backend/internal/clients/redis"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset.
	Redis      *goredis.Client
	Generation generation.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var rdb *goredis.Client
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		c, err := redis.NewClient(ctx, log, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis client: %w", err)
		}
		rdb = c
	} else {
		log.Warn("REDIS_ADDR not set; chunk store is process-local")
	}

	gen, err := generation.NewClient(log, generation.Config{
		URL:     cfg.GenerationURL,
		APIKey:  cfg.GenerationAPIKey,
		Timeout: cfg.GenerationTimeout,
	})
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init generation client: %w", err)
	}

	return Clients{Redis: rdb, Generation: gen}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
