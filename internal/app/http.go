package app

import (
	"github.com/yungbote/chatrelay-backend/internal/http"
	httpH "github.com/yungbote/chatrelay-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatrelay-backend/internal/http/middleware"
	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
)

const serviceName = "chatrelay"

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health       *httpH.HealthHandler
	User         *httpH.UserHandler
	Conversation *httpH.ConversationHandler
	Callback     *httpH.CallbackHandler
	Live         *httpH.LiveHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireHandlers(log *logger.Logger, cfg Config, services Services, rt Realtime, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	live := httpH.NewLiveHandler(log, services.Auth, services.Chat, rt.Chunks, rt.Registry, metrics, httpH.LiveHandlerConfig{
		AllowedOrigins: cfg.CORSOrigins,
		Session: realtime.SessionConfig{
			ReceiveTimeout: cfg.LiveReceiveTimeout,
			PingInterval:   cfg.LivePingInterval,
			WriteTimeout:   cfg.LiveWriteTimeout,
			InboundRate:    cfg.LiveInboundRate,
			InboundBurst:   cfg.LiveInboundBurst,
		},
	})
	return Handlers{
		Health:       httpH.NewHealthHandler(),
		User:         httpH.NewUserHandler(services.User),
		Conversation: httpH.NewConversationHandler(services.Chat),
		Callback:     httpH.NewCallbackHandler(log, services.Callback),
		Live:         live,
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		CORSOrigins:         cfg.CORSOrigins,
		ServiceName:         serviceName,
		AuthMiddleware:      middleware.Auth,
		HealthHandler:       handlers.Health,
		UserHandler:         handlers.User,
		ConversationHandler: handlers.Conversation,
		CallbackHandler:     handlers.Callback,
		LiveHandler:         handlers.Live,
	})
}
