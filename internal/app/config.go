package app

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/chatrelay-backend/internal/data/db"
	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/envutil"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

const (
	RelayBusLocal = "local"
	RelayBusRedis = "redis"
)

type Config struct {
	Port        string
	Environment string

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	Postgres db.PostgresConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
	RelayBus      string
	ChunkTTL      time.Duration

	GenerationURL     string
	GenerationAPIKey  string
	GenerationTimeout time.Duration
	CallbackBaseURL   string

	LiveReceiveTimeout time.Duration
	LivePingInterval   time.Duration
	LiveWriteTimeout   time.Duration
	LiveInboundRate    rate.Limit
	LiveInboundBurst   int

	ReaperInterval   time.Duration
	ReaperInactivity time.Duration

	TaxonomyFile string
	CORSOrigins  []string

	Tracing observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	port := envutil.String("PORT", "8080", log)
	return Config{
		Port:        port,
		Environment: envutil.String("ENVIRONMENT", "development", log),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", "defaultsecret", log),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", 24*time.Hour, log),

		Postgres: db.PostgresConfig{
			Host:     envutil.String("POSTGRES_HOST", "localhost", log),
			Port:     envutil.String("POSTGRES_PORT", "5432", log),
			User:     envutil.String("POSTGRES_USER", "postgres", log),
			Password: envutil.String("POSTGRES_PASSWORD", "", log),
			Name:     envutil.String("POSTGRES_NAME", "chatrelay", log),
			SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable", log),
		},

		RedisAddr:     envutil.String("REDIS_ADDR", "", log),
		RedisPassword: envutil.String("REDIS_PASSWORD", "", log),
		RedisDB:       envutil.Int("REDIS_DB", 0, log),
		RedisChannel:  envutil.String("REDIS_CHANNEL", "chatrelay:relay", log),
		RelayBus:      envutil.String("RELAY_BUS", RelayBusLocal, log),
		ChunkTTL:      envutil.Duration("CHUNK_TTL", time.Hour, log),

		GenerationURL:     envutil.String("GENERATION_SERVICE_URL", "", log),
		GenerationAPIKey:  envutil.String("GENERATION_SERVICE_API_KEY", "", log),
		GenerationTimeout: envutil.Duration("GENERATION_TIMEOUT", 10*time.Second, log),
		CallbackBaseURL:   envutil.String("CALLBACK_BASE_URL", "http://localhost:"+port+"/api", log),

		LiveReceiveTimeout: envutil.Duration("LIVE_RECEIVE_TIMEOUT", 120*time.Second, log),
		LivePingInterval:   envutil.Duration("LIVE_PING_INTERVAL", 45*time.Second, log),
		LiveWriteTimeout:   envutil.Duration("LIVE_WRITE_TIMEOUT", 10*time.Second, log),
		LiveInboundRate:    rate.Limit(envutil.Float("LIVE_INBOUND_RATE", 20, log)),
		LiveInboundBurst:   envutil.Int("LIVE_INBOUND_BURST", 40, log),

		ReaperInterval:   envutil.Duration("REAPER_INTERVAL", 60*time.Second, log),
		ReaperInactivity: envutil.Duration("REAPER_INACTIVITY", 600*time.Second, log),

		TaxonomyFile: envutil.String("TAXONOMY_FILE", "", log),
		CORSOrigins:  envutil.List("CORS_ORIGINS", nil, log),

		Tracing: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false, log),
			Version:     envutil.String("SERVICE_VERSION", "", log),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false, log),
			Headers:     observability.ParseHeaders(envutil.List("OTEL_EXPORTER_OTLP_HEADERS", nil, log)),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1, log),
		},
	}
}
