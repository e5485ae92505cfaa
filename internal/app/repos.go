package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/chatrelay-backend/internal/data/repos"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type Repos struct {
	User         repos.UserRepo
	Conversation repos.ConversationRepo
	Message      repos.MessageRepo
	Source       repos.SourceRepo
	Reaction     repos.ReactionRepo
	File         repos.FileRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:         repos.NewUserRepo(db, log),
		Conversation: repos.NewConversationRepo(db, log),
		Message:      repos.NewMessageRepo(db, log),
		Source:       repos.NewSourceRepo(db, log),
		Reaction:     repos.NewReactionRepo(db, log),
		File:         repos.NewFileRepo(db, log),
	}
}
