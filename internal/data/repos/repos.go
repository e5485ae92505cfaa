package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/chatrelay-backend/internal/data/repos/chat"
	"github.com/yungbote/chatrelay-backend/internal/data/repos/user"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type ConversationRepo = chat.ConversationRepo
type MessageRepo = chat.MessageRepo
type SourceRepo = chat.SourceRepo
type ReactionRepo = chat.ReactionRepo
type FileRepo = chat.FileRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo { return user.NewUserRepo(db, log) }

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return chat.NewConversationRepo(db, log)
}
func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, log)
}
func NewSourceRepo(db *gorm.DB, log *logger.Logger) SourceRepo { return chat.NewSourceRepo(db, log) }
func NewReactionRepo(db *gorm.DB, log *logger.Logger) ReactionRepo {
	return chat.NewReactionRepo(db, log)
}
func NewFileRepo(db *gorm.DB, log *logger.Logger) FileRepo { return chat.NewFileRepo(db, log) }
