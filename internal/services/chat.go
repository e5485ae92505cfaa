package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/chatrelay-backend/internal/clients/generation"
	"github.com/yungbote/chatrelay-backend/internal/data/repos"
	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/domain/chat"
	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/apierr"
	"github.com/yungbote/chatrelay-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
)

const (
	maxMessageLength = 20000
	historyLimit     = 50
)

type ChatService interface {
	CreateConversation(dbc dbctx.Context, title string) (*types.Conversation, error)
	ListConversations(dbc dbctx.Context, offset, limit int) ([]*types.Conversation, int64, error)
	GetConversation(dbc dbctx.Context, conversationID uuid.UUID) (*types.Conversation, error)
	ListMessages(dbc dbctx.Context, conversationID uuid.UUID, offset, limit int) ([]*types.Message, int64, error)

	// SendMessage stores the user's message and a pending generated message, then
	// submits the generation request in the background.
	SendMessage(dbc dbctx.Context, conversationID uuid.UUID, in SendMessageInput) (*SendMessageResult, error)

	AddReaction(dbc dbctx.Context, conversationID, messageID uuid.UUID, reactionType string) (*types.Reaction, error)

	// AuthorizeConversation loads a conversation the identity owns or, for admins, any conversation.
	AuthorizeConversation(dbc dbctx.Context, id *ctxutil.Identity, conversationID uuid.UUID) (*types.Conversation, error)

	// Suggestions and MessageInConversation back an already-authorized live session.
	Suggestions(dbc dbctx.Context, conversationID uuid.UUID) ([]string, error)
	MessageInConversation(dbc dbctx.Context, conversationID, messageID uuid.UUID) bool
}

type SendMessageInput struct {
	Content string
	FileIDs []uuid.UUID
}

type SendMessageResult struct {
	UserMessage      *types.Message `json:"user_message"`
	GeneratedMessage *types.Message `json:"generated_message"`
}

type ChatServiceConfig struct {
	// CallbackBaseURL prefixes /conversations/{id}/messages/{id}/callback.
	CallbackBaseURL string
}

type chatService struct {
	db            *gorm.DB
	log           *logger.Logger
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	reactions     repos.ReactionRepo
	files         repos.FileRepo
	generator     generation.Client
	relay         realtime.Relay
	taxonomy      *Taxonomy
	metrics       *observability.Metrics
	cfg           ChatServiceConfig

	// goFn runs background dispatch; tests replace it to run inline.
	goFn func(func())
}

func NewChatService(
	db *gorm.DB,
	log *logger.Logger,
	conversations repos.ConversationRepo,
	messages repos.MessageRepo,
	reactions repos.ReactionRepo,
	files repos.FileRepo,
	generator generation.Client,
	relay realtime.Relay,
	taxonomy *Taxonomy,
	metrics *observability.Metrics,
	cfg ChatServiceConfig,
) ChatService {
	cfg.CallbackBaseURL = strings.TrimRight(strings.TrimSpace(cfg.CallbackBaseURL), "/")
	return &chatService{
		db:            db,
		log:           log.With("service", "ChatService"),
		conversations: conversations,
		messages:      messages,
		reactions:     reactions,
		files:         files,
		generator:     generator,
		relay:         relay,
		taxonomy:      taxonomy,
		metrics:       metrics,
		cfg:           cfg,
		goFn:          func(f func()) { go f() },
	}
}

func requireIdentity(ctx context.Context) (*ctxutil.Identity, error) {
	id := ctxutil.GetIdentity(ctx)
	if id == nil || id.UserID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated: %w", apierr.ErrUnauthorized)
	}
	return id, nil
}

func (s *chatService) AuthorizeConversation(dbc dbctx.Context, id *ctxutil.Identity, conversationID uuid.UUID) (*types.Conversation, error) {
	if id == nil || id.UserID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated: %w", apierr.ErrUnauthorized)
	}
	conv, err := s.conversations.GetByID(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != id.UserID && !id.IsAdmin {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, apierr.ErrForbidden)
	}
	return conv, nil
}

func (s *chatService) Suggestions(dbc dbctx.Context, conversationID uuid.UUID) ([]string, error) {
	conv, err := s.conversations.GetByID(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	return []string(conv.Suggestions), nil
}

func (s *chatService) MessageInConversation(dbc dbctx.Context, conversationID, messageID uuid.UUID) bool {
	_, err := s.messages.GetInConversation(dbc, conversationID, messageID)
	return err == nil
}

func (s *chatService) CreateConversation(dbc dbctx.Context, title string) (*types.Conversation, error) {
	id, err := requireIdentity(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if len(title) > 200 {
		return nil, fmt.Errorf("title too long: %w", apierr.ErrInvalidArgument)
	}
	return s.conversations.Create(dbc, &types.Conversation{UserID: id.UserID, Title: title})
}

func (s *chatService) ListConversations(dbc dbctx.Context, offset, limit int) ([]*types.Conversation, int64, error) {
	id, err := requireIdentity(dbc.Ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.conversations.ListByUser(dbc, id.UserID, offset, limit)
}

func (s *chatService) GetConversation(dbc dbctx.Context, conversationID uuid.UUID) (*types.Conversation, error) {
	id, err := requireIdentity(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	return s.AuthorizeConversation(dbc, id, conversationID)
}

func (s *chatService) ListMessages(dbc dbctx.Context, conversationID uuid.UUID, offset, limit int) ([]*types.Message, int64, error) {
	id, err := requireIdentity(dbc.Ctx)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.AuthorizeConversation(dbc, id, conversationID); err != nil {
		return nil, 0, err
	}
	return s.messages.ListByConversation(dbc, conversationID, offset, limit)
}

func (s *chatService) AddReaction(dbc dbctx.Context, conversationID, messageID uuid.UUID, reactionType string) (*types.Reaction, error) {
	id, err := requireIdentity(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.AuthorizeConversation(dbc, id, conversationID); err != nil {
		return nil, err
	}
	reactionType = strings.ToLower(strings.TrimSpace(reactionType))
	if !chat.ValidReaction(reactionType) {
		return nil, fmt.Errorf("reaction_type must be like or dislike: %w", apierr.ErrInvalidArgument)
	}
	if _, err := s.messages.GetInConversation(dbc, conversationID, messageID); err != nil {
		return nil, err
	}
	return s.reactions.Replace(dbc, messageID, reactionType)
}

func (s *chatService) SendMessage(dbc dbctx.Context, conversationID uuid.UUID, in SendMessageInput) (*SendMessageResult, error) {
	id, err := requireIdentity(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("missing content: %w", apierr.ErrInvalidArgument)
	}
	if len(content) > maxMessageLength {
		return nil, fmt.Errorf("message too large: %w", apierr.ErrInvalidArgument)
	}
	conv, err := s.AuthorizeConversation(dbc, id, conversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.messages.ListHistory(dbc, conv.ID, time.Now().Add(time.Second), historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	files, err := s.files.GetOwnedByIDs(dbc, conv.UserID, in.FileIDs)
	if err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}

	var userMsg, genMsg *types.Message
	err = s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		created, err := s.messages.Create(txc, []*types.Message{{
			ConversationID: conv.ID,
			Kind:           types.MessageKindUser,
			Status:         types.StatusCompleted,
			Content:        content,
		}})
		if err != nil {
			return err
		}
		userMsg = created[0]
		fileIDs := make([]uuid.UUID, 0, len(files))
		for _, f := range files {
			fileIDs = append(fileIDs, f.ID)
		}
		if err := s.files.AttachToMessage(txc, userMsg.ID, fileIDs); err != nil {
			return err
		}
		created, err = s.messages.Create(txc, []*types.Message{{
			ConversationID: conv.ID,
			Kind:           types.MessageKindGenerated,
			Status:         types.StatusPending,
		}})
		if err != nil {
			return err
		}
		genMsg = created[0]
		return s.conversations.UpdateFields(txc, conv.ID, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("create messages: %w", err)
	}

	req := generation.Request{
		Message:             content,
		ConversationHistory: historyTurns(history),
		Files:               fileContents(files),
		CallbackURL:         s.callbackURL(conv.ID, genMsg.ID),
	}
	// The request context ends with the HTTP response; dispatch keeps only its values.
	bg := context.WithoutCancel(dbc.Ctx)
	convID, genID := conv.ID, genMsg.ID
	s.goFn(func() { s.dispatch(bg, convID, genID, req) })

	return &SendMessageResult{UserMessage: userMsg, GeneratedMessage: genMsg}, nil
}

func (s *chatService) callbackURL(conversationID, messageID uuid.UUID) string {
	return fmt.Sprintf("%s/conversations/%s/messages/%s/callback", s.cfg.CallbackBaseURL, conversationID, messageID)
}

// dispatch submits the generation request and records the outcome. It never retries.
func (s *chatService) dispatch(ctx context.Context, conversationID, messageID uuid.UUID, req generation.Request) {
	log := s.log.With("conversation_id", conversationID.String(), "message_id", messageID.String())
	dbc := dbctx.Context{Ctx: ctx}

	start := time.Now()
	resp, err := s.generator.Submit(ctx, req)
	if err != nil {
		s.metrics.ObserveGeneration("failed", time.Since(start))
		log.Warn("generation request failed", "error", err)
		placeholder := chat.FailedPlaceholder
		ok, uerr := s.messages.TransitionStatus(dbc, messageID, chat.OpenStatuses, types.StatusFailed, &placeholder)
		if uerr != nil {
			log.Error("failed to mark message failed", "error", uerr)
		} else if !ok {
			log.Warn("message already terminal when generation failed")
		}
		return
	}
	s.metrics.ObserveGeneration("accepted", time.Since(start))

	// A fast callback may already have completed the message.
	if ok, err := s.messages.TransitionStatus(dbc, messageID, []string{types.StatusPending}, types.StatusProcessing, nil); err != nil {
		log.Error("failed to mark message processing", "error", err)
	} else if !ok {
		log.Debug("message advanced past pending before acceptance was recorded")
	}

	conv, err := s.conversations.GetByID(dbc, conversationID)
	if err != nil {
		log.Error("failed to reload conversation", "error", err)
		return
	}
	updates := map[string]interface{}{}
	if name := strings.TrimSpace(resp.Name); name != "" && conv.HasDefaultTitle() {
		updates["title"] = name
	}
	if len(resp.Cluster) > 0 {
		updates["sub_categories"] = datatypes.JSONSlice[string](resp.Cluster)
		updates["categories"] = datatypes.JSONSlice[string](s.taxonomy.GeneralFor(resp.Cluster))
	}
	if resp.Suggestions != nil {
		updates["suggestions"] = datatypes.JSONSlice[string](resp.Suggestions)
	}
	if len(updates) > 0 {
		if err := s.conversations.UpdateFields(dbc, conversationID, updates); err != nil {
			log.Error("failed to store generation metadata", "error", err)
			return
		}
	}
	if resp.Suggestions != nil {
		key := realtime.Key{ConversationID: conversationID, ViewerID: conv.UserID}
		s.relay.Publish(ctx, key, realtime.SuggestionsEvent(conversationID.String(), resp.Suggestions))
	}
	log.Info("generation request accepted", "request_id", resp.RequestID)
}

func historyTurns(msgs []*types.Message) []generation.Turn {
	out := make([]generation.Turn, 0, len(msgs))
	for _, m := range msgs {
		switch m.Kind {
		case types.MessageKindUser:
			out = append(out, generation.Turn{Role: "user", Content: m.Content})
		case types.MessageKindGenerated:
			out = append(out, generation.Turn{Role: "assistant", Content: m.Content})
		}
	}
	return out
}

func fileContents(files []*types.File) []generation.FileContent {
	if len(files) == 0 {
		return nil
	}
	out := make([]generation.FileContent, 0, len(files))
	for _, f := range files {
		out = append(out, generation.FileContent{Name: f.Name, Content: f.Content})
	}
	return out
}
