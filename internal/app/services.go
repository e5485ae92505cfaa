package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/services"
)

type Services struct {
	Auth     services.AuthService
	User     services.UserService
	Chat     services.ChatService
	Callback services.CallbackService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, rt Realtime, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	taxonomy, err := services.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return Services{}, fmt.Errorf("load taxonomy: %w", err)
	}

	chat := services.NewChatService(db, log, repos.Conversation, repos.Message, repos.Reaction, repos.File,
		clients.Generation, rt.Relay, taxonomy, metrics,
		services.ChatServiceConfig{CallbackBaseURL: cfg.CallbackBaseURL})
	callback := services.NewCallbackService(db, log, repos.Conversation, repos.Message, repos.Source,
		rt.Chunks, rt.Relay, metrics)

	return Services{
		Auth:     services.NewAuthService(log, repos.User, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		User:     services.NewUserService(log, repos.User),
		Chat:     chat,
		Callback: callback,
	}, nil
}
