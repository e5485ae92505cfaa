package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/platform/apierr"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type SourceRepo interface {
	// ReplaceForMessage deletes every source of the message and inserts rows in order.
	ReplaceForMessage(dbc dbctx.Context, messageID uuid.UUID, rows []*types.Source) error
	ListByMessage(dbc dbctx.Context, messageID uuid.UUID) ([]*types.Source, error)
}

type sourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceRepo(db *gorm.DB, log *logger.Logger) SourceRepo {
	return &sourceRepo{db: db, log: log.With("repo", "SourceRepo")}
}

func (r *sourceRepo) ReplaceForMessage(dbc dbctx.Context, messageID uuid.UUID, rows []*types.Source) error {
	if messageID == uuid.Nil {
		return fmt.Errorf("missing message_id: %w", apierr.ErrInvalidArgument)
	}
	replace := func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", messageID).Delete(&types.Source{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i, s := range rows {
			s.MessageID = messageID
			s.Position = i
		}
		return tx.Create(&rows).Error
	}
	if dbc.Tx != nil {
		return replace(dbc.Conn(r.db))
	}
	return dbc.Conn(r.db).Transaction(replace)
}

func (r *sourceRepo) ListByMessage(dbc dbctx.Context, messageID uuid.UUID) ([]*types.Source, error) {
	if messageID == uuid.Nil {
		return nil, fmt.Errorf("missing message_id: %w", apierr.ErrInvalidArgument)
	}
	var out []*types.Source
	if err := dbc.Conn(r.db).
		Where("message_id = ?", messageID).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
