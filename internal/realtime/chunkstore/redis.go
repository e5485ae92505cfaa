package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

// appendOnce records the chunk id and appends the text only when the id is new.
// KEYS[1] content, KEYS[2] seen chunk ids; ARGV chunk id, text, ttl in ms.
var appendOnce = goredis.NewScript(`
local added = redis.call('SADD', KEYS[2], ARGV[1])
if added == 1 then
	redis.call('APPEND', KEYS[1], ARGV[2])
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[3])
return added
`)

type redisStore struct {
	rdb goredis.UniversalClient
	ttl time.Duration
	log *logger.Logger
}

func NewRedis(rdb goredis.UniversalClient, ttl time.Duration, log *logger.Logger) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisStore{rdb: rdb, ttl: ttl, log: log.With("component", "RedisChunkStore")}
}

func (s *redisStore) Append(ctx context.Context, messageID uuid.UUID, chunkID, text string) (bool, error) {
	k := key(messageID)
	added, err := appendOnce.Run(ctx, s.rdb, []string{k, chunksKey(messageID)}, chunkID, text, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("chunkstore append %s: %w", k, err)
	}
	return added == 1, nil
}

func (s *redisStore) Read(ctx context.Context, messageID uuid.UUID) (string, error) {
	k := key(messageID)
	val, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("chunkstore read %s: %w", k, err)
	}
	return val, nil
}
