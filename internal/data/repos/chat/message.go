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

type MessageRepo interface {
	Create(dbc dbctx.Context, rows []*types.Message) ([]*types.Message, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error)
	// GetInConversation returns ErrNotFound when the message exists but belongs elsewhere.
	GetInConversation(dbc dbctx.Context, conversationID, messageID uuid.UUID) (*types.Message, error)
	ListByConversation(dbc dbctx.Context, conversationID uuid.UUID, offset, limit int) ([]*types.Message, int64, error)
	ListHistory(dbc dbctx.Context, conversationID uuid.UUID, before time.Time, limit int) ([]*types.Message, error)
	// TransitionStatus moves a message to `to` only while its status is one of `from`.
	// The boolean reports whether this call performed the transition.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []string, to string, content *string) (bool, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, rows []*types.Message) ([]*types.Message, error) {
	if len(rows) == 0 {
		return []*types.Message{}, nil
	}
	for _, m := range rows {
		if m == nil || m.ConversationID == uuid.Nil {
			return nil, fmt.Errorf("missing conversation_id: %w", apierr.ErrInvalidArgument)
		}
	}
	if err := dbc.Conn(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing message_id: %w", apierr.ErrInvalidArgument)
	}
	var out types.Message
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", id, apierr.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) GetInConversation(dbc dbctx.Context, conversationID, messageID uuid.UUID) (*types.Message, error) {
	if conversationID == uuid.Nil || messageID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id or message_id: %w", apierr.ErrInvalidArgument)
	}
	var out types.Message
	err := dbc.Conn(r.db).
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s in conversation %s: %w", messageID, conversationID, apierr.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID, offset, limit int) ([]*types.Message, int64, error) {
	if conversationID == uuid.Nil {
		return nil, 0, fmt.Errorf("missing conversation_id: %w", apierr.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := dbc.Conn(r.db).
		Model(&types.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*types.Message
	err := dbc.Conn(r.db).
		Preload("Sources", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Reactions").
		Preload("Files.File").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListHistory returns up to limit completed messages created before `before`, oldest first.
func (r *messageRepo) ListHistory(dbc dbctx.Context, conversationID uuid.UUID, before time.Time, limit int) ([]*types.Message, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id: %w", apierr.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.Message
	err := dbc.Conn(r.db).
		Where("conversation_id = ? AND status = ? AND created_at < ?", conversationID, types.StatusCompleted, before).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *messageRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []string, to string, content *string) (bool, error) {
	if id == uuid.Nil {
		return false, fmt.Errorf("missing message_id: %w", apierr.ErrInvalidArgument)
	}
	if len(from) == 0 || to == "" {
		return false, fmt.Errorf("missing status transition: %w", apierr.ErrInvalidArgument)
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if content != nil {
		updates["content"] = *content
	}
	res := dbc.Conn(r.db).
		Model(&types.Message{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
