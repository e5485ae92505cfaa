package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/chatrelay-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatrelay-backend/internal/http/middleware"
	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	CORSOrigins    []string
	ServiceName    string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler       *httpH.HealthHandler
	UserHandler         *httpH.UserHandler
	ConversationHandler *httpH.ConversationHandler
	CallbackHandler     *httpH.CallbackHandler
	LiveHandler         *httpH.LiveHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Live sessions authenticate themselves before upgrading.
	if cfg.LiveHandler != nil {
		r.GET("/live/conversations/:id", cfg.LiveHandler.Connect)
	}

	api := r.Group("/api")
	{
		// Generation service callbacks (public)
		if cfg.CallbackHandler != nil {
			api.POST("/conversations/:id/messages/:message_id/callback", cfg.CallbackHandler.Ingest)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
		}

		if cfg.ConversationHandler != nil {
			protected.POST("/conversations", cfg.ConversationHandler.CreateConversation)
			protected.GET("/conversations", cfg.ConversationHandler.ListConversations)
			protected.GET("/conversations/:id", cfg.ConversationHandler.GetConversation)
			protected.GET("/conversations/:id/messages", cfg.ConversationHandler.ListMessages)
			protected.POST("/conversations/:id/messages", cfg.ConversationHandler.SendMessage)
			protected.POST("/conversations/:id/messages/:message_id/reaction", cfg.ConversationHandler.AddReaction)
		}
	}

	return r
}
