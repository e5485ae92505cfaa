package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/chatrelay-backend/internal/data/repos"
	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/domain/chat"
	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/apierr"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
	"github.com/yungbote/chatrelay-backend/internal/realtime/chunkstore"
)

// CallbackPayload is one streamed piece from the generation service. Pointer and
// raw fields distinguish "absent" from zero values.
type CallbackPayload struct {
	ChunkID     json.RawMessage  `json:"chunk_id" validate:"required"`
	Content     *string          `json:"content" validate:"required"`
	IsFinal     *bool            `json:"is_final" validate:"required"`
	ContextUsed []map[string]any `json:"context_used,omitempty"`
	ContentUsed []map[string]any `json:"content_used,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

func (p *CallbackPayload) final() bool { return p.IsFinal != nil && *p.IsFinal }

// chunkKey is the chunk id as the store sees it; 7 and "7" are the same chunk.
func (p *CallbackPayload) chunkKey() string {
	raw := bytes.TrimSpace(p.ChunkID)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (p *CallbackPayload) sourcesSupplied() bool {
	return p.ContextUsed != nil || p.ContentUsed != nil
}

func (p *CallbackPayload) citations() []map[string]any {
	out := make([]map[string]any, 0, len(p.ContextUsed)+len(p.ContentUsed))
	out = append(out, p.ContextUsed...)
	return append(out, p.ContentUsed...)
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCallbackPayload reports missing required fields as ErrInvalidArgument.
func ValidateCallbackPayload(p *CallbackPayload) error {
	if p == nil {
		return fmt.Errorf("missing payload: %w", apierr.ErrInvalidArgument)
	}
	if err := payloadValidator.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("missing required fields %s: %w", strings.Join(fields, ", "), apierr.ErrInvalidArgument)
		}
		return fmt.Errorf("invalid payload: %v: %w", err, apierr.ErrInvalidArgument)
	}
	if bytes.Equal(bytes.TrimSpace(p.ChunkID), []byte("null")) {
		return fmt.Errorf("missing required fields chunk_id: %w", apierr.ErrInvalidArgument)
	}
	return nil
}

type CallbackService interface {
	// Ingest appends one chunk, relays it and, on the final chunk, finalizes the message.
	// Repeated final chunks for a completed message succeed without effect.
	Ingest(dbc dbctx.Context, conversationID, messageID uuid.UUID, p *CallbackPayload) error
}

type callbackService struct {
	db            *gorm.DB
	log           *logger.Logger
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	sources       repos.SourceRepo
	chunks        chunkstore.Store
	relay         realtime.Relay
	metrics       *observability.Metrics
}

func NewCallbackService(
	db *gorm.DB,
	log *logger.Logger,
	conversations repos.ConversationRepo,
	messages repos.MessageRepo,
	sources repos.SourceRepo,
	chunks chunkstore.Store,
	relay realtime.Relay,
	metrics *observability.Metrics,
) CallbackService {
	return &callbackService{
		db:            db,
		log:           log.With("service", "CallbackService"),
		conversations: conversations,
		messages:      messages,
		sources:       sources,
		chunks:        chunks,
		relay:         relay,
		metrics:       metrics,
	}
}

func (s *callbackService) Ingest(dbc dbctx.Context, conversationID, messageID uuid.UUID, p *CallbackPayload) (err error) {
	if err := ValidateCallbackPayload(p); err != nil {
		s.metrics.IncCallback("invalid")
		return err
	}

	ctx, span := observability.Tracer().Start(dbc.Ctx, "callback.ingest", trace.WithAttributes(
		attribute.String("conversation_id", conversationID.String()),
		attribute.String("message_id", messageID.String()),
		attribute.Bool("is_final", p.final()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	dbc.Ctx = ctx
	log := s.log.With("conversation_id", conversationID.String(), "message_id", messageID.String())

	msg, err := s.messages.GetInConversation(dbc, conversationID, messageID)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			s.metrics.IncCallback("not_found")
		}
		return err
	}
	if msg.IsTerminal() {
		log.Info("callback for finished message ignored", "status", msg.Status, "is_final", p.final())
		s.metrics.IncCallback("duplicate")
		return nil
	}
	if msg.Kind != types.MessageKindGenerated {
		s.metrics.IncCallback("invalid")
		return fmt.Errorf("message %s is not generated: %w", messageID, apierr.ErrInvalidArgument)
	}
	conv, err := s.conversations.GetByID(dbc, conversationID)
	if err != nil {
		return err
	}
	key := realtime.Key{ConversationID: conv.ID, ViewerID: conv.UserID}

	added, err := s.chunks.Append(ctx, messageID, p.chunkKey(), *p.Content)
	if err != nil {
		// Viewers still get the live chunk; only late-join catch-up loses it.
		log.Error("chunk store append failed", "error", err)
		s.metrics.IncChunkStoreError("append")
		added = true
	}
	if !added {
		// A redelivered chunk was already buffered and relayed.
		log.Info("repeated chunk ignored", "chunk_id", p.chunkKey(), "is_final", p.final())
		if !p.final() {
			s.metrics.IncCallback("duplicate")
			return nil
		}
		return s.finalize(dbc, log, key, conv, messageID, p)
	}

	ev := realtime.ChunkEvent(messageID.String(), *p.Content)
	updates := map[string]interface{}{}
	if p.Name != nil {
		if name := strings.TrimSpace(*p.Name); name != "" && conv.HasDefaultTitle() {
			updates["title"] = name
			ev.Title = name
		}
	}
	if !p.final() && p.Suggestions != nil {
		updates["suggestions"] = datatypes.JSONSlice[string](p.Suggestions)
		ev.Suggestions = p.Suggestions
	}
	if len(updates) > 0 {
		if err := s.conversations.UpdateFields(dbc, conv.ID, updates); err != nil {
			log.Warn("failed to store streamed conversation metadata", "error", err)
		}
	}
	s.relay.Publish(ctx, key, ev)

	if !p.final() {
		s.metrics.IncCallback("chunk")
		return nil
	}
	return s.finalize(dbc, log, key, conv, messageID, p)
}

func (s *callbackService) finalize(dbc dbctx.Context, log *logger.Logger, key realtime.Key, conv *types.Conversation, messageID uuid.UUID, p *CallbackPayload) error {
	full, err := s.chunks.Read(dbc.Ctx, messageID)
	if err != nil {
		s.metrics.IncChunkStoreError("read")
		s.metrics.IncCallback("unavailable")
		return fmt.Errorf("read accumulated content: %v: %w", err, apierr.ErrUnavailable)
	}
	views := NormalizeSources(p.citations())

	applied := false
	err = s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		ok, err := s.messages.TransitionStatus(txc, messageID, chat.OpenStatuses, types.StatusCompleted, &full)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true
		if p.sourcesSupplied() {
			if err := s.sources.ReplaceForMessage(txc, messageID, sourceRows(views)); err != nil {
				return err
			}
		}
		var updates map[string]interface{}
		if p.Suggestions != nil {
			updates = map[string]interface{}{"suggestions": datatypes.JSONSlice[string](p.Suggestions)}
		}
		return s.conversations.UpdateFields(txc, conv.ID, updates)
	})
	if err != nil {
		s.metrics.IncCallback("error")
		return fmt.Errorf("finalize message: %w", err)
	}
	if !applied {
		log.Info("final callback raced another finalization")
		s.metrics.IncCallback("duplicate")
		return nil
	}

	sourcesOut := views
	if rows, err := s.sources.ListByMessage(dbc, messageID); err != nil {
		log.Warn("failed to reload sources", "error", err)
	} else {
		sourcesOut = sourceViews(rows)
	}
	suggestions := []string(conv.Suggestions)
	if p.Suggestions != nil {
		suggestions = p.Suggestions
	}
	if fresh, err := s.conversations.GetByID(dbc, conv.ID); err != nil {
		log.Warn("failed to reload conversation", "error", err)
	} else {
		suggestions = []string(fresh.Suggestions)
	}

	s.relay.Publish(dbc.Ctx, key, realtime.CompleteEvent(messageID.String(), sourcesOut, suggestions))
	s.metrics.IncCallback("completed")
	log.Info("message finalized", "content_length", len(full), "sources", len(sourcesOut))
	return nil
}
