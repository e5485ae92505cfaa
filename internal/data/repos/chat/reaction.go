package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/domain/chat"
	"github.com/yungbote/chatrelay-backend/internal/platform/apierr"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type ReactionRepo interface {
	// Replace leaves the message with exactly one reaction of the given type.
	Replace(dbc dbctx.Context, messageID uuid.UUID, reactionType string) (*types.Reaction, error)
	ListByMessage(dbc dbctx.Context, messageID uuid.UUID) ([]*types.Reaction, error)
}

type reactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReactionRepo(db *gorm.DB, log *logger.Logger) ReactionRepo {
	return &reactionRepo{db: db, log: log.With("repo", "ReactionRepo")}
}

func (r *reactionRepo) Replace(dbc dbctx.Context, messageID uuid.UUID, reactionType string) (*types.Reaction, error) {
	if messageID == uuid.Nil {
		return nil, fmt.Errorf("missing message_id: %w", apierr.ErrInvalidArgument)
	}
	if !chat.ValidReaction(reactionType) {
		return nil, fmt.Errorf("reaction %q: %w", reactionType, apierr.ErrInvalidArgument)
	}
	row := &types.Reaction{MessageID: messageID, Type: reactionType}
	replace := func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", messageID).Delete(&types.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	}
	var err error
	if dbc.Tx != nil {
		err = replace(dbc.Conn(r.db))
	} else {
		err = dbc.Conn(r.db).Transaction(replace)
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *reactionRepo) ListByMessage(dbc dbctx.Context, messageID uuid.UUID) ([]*types.Reaction, error) {
	var out []*types.Reaction
	if err := dbc.Conn(r.db).Where("message_id = ?", messageID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
