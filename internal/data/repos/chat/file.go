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

type FileRepo interface {
	Create(dbc dbctx.Context, rows []*types.File) ([]*types.File, error)
	// GetOwnedByIDs silently drops ids that do not exist or belong to another user.
	GetOwnedByIDs(dbc dbctx.Context, userID uuid.UUID, ids []uuid.UUID) ([]*types.File, error)
	AttachToMessage(dbc dbctx.Context, messageID uuid.UUID, fileIDs []uuid.UUID) error
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, log *logger.Logger) FileRepo {
	return &fileRepo{db: db, log: log.With("repo", "FileRepo")}
}

func (r *fileRepo) Create(dbc dbctx.Context, rows []*types.File) ([]*types.File, error) {
	if len(rows) == 0 {
		return []*types.File{}, nil
	}
	if err := dbc.Conn(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *fileRepo) GetOwnedByIDs(dbc dbctx.Context, userID uuid.UUID, ids []uuid.UUID) ([]*types.File, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", apierr.ErrInvalidArgument)
	}
	if len(ids) == 0 {
		return []*types.File{}, nil
	}
	var out []*types.File
	if err := dbc.Conn(r.db).
		Where("user_id = ? AND id IN ?", userID, ids).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fileRepo) AttachToMessage(dbc dbctx.Context, messageID uuid.UUID, fileIDs []uuid.UUID) error {
	if messageID == uuid.Nil {
		return fmt.Errorf("missing message_id: %w", apierr.ErrInvalidArgument)
	}
	if len(fileIDs) == 0 {
		return nil
	}
	rows := make([]*types.MessageFile, 0, len(fileIDs))
	for _, id := range fileIDs {
		rows = append(rows, &types.MessageFile{MessageID: messageID, FileID: id})
	}
	return dbc.Conn(r.db).Create(&rows).Error
}
