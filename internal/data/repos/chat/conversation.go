package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/platform/apierr"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type ConversationRepo interface {
	Create(dbc dbctx.Context, row *types.Conversation) (*types.Conversation, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, offset, limit int) ([]*types.Conversation, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: log.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(dbc dbctx.Context, row *types.Conversation) (*types.Conversation, error) {
	if row == nil || row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", apierr.ErrInvalidArgument)
	}
	if row.Title == "" {
		row.Title = types.DefaultConversationTitle
	}
	if row.Suggestions == nil {
		row.Suggestions = []string{}
	}
	if row.Categories == nil {
		row.Categories = []string{}
	}
	if row.SubCategories == nil {
		row.SubCategories = []string{}
	}
	if err := dbc.Conn(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *conversationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id: %w", apierr.ErrInvalidArgument)
	}
	var out types.Conversation
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", id, apierr.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (r *conversationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, offset, limit int) ([]*types.Conversation, int64, error) {
	if userID == uuid.Nil {
		return nil, 0, fmt.Errorf("missing user_id: %w", apierr.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := dbc.Conn(r.db).Model(&types.Conversation{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*types.Conversation
	if err := dbc.Conn(r.db).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *conversationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing conversation_id: %w", apierr.ErrInvalidArgument)
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return dbc.Conn(r.db).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}
