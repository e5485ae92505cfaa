package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/chatrelay-backend/internal/http/middleware"
	"github.com/yungbote/chatrelay-backend/internal/http/response"
	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/apierr"
	"github.com/yungbote/chatrelay-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
	"github.com/yungbote/chatrelay-backend/internal/services"
)

type LiveHandlerConfig struct {
	// AllowedOrigins limits browser upgrades; empty or "*" accepts any origin.
	AllowedOrigins []string
	Session        realtime.SessionConfig
}

// LiveHandler authenticates viewers, upgrades them to a websocket and runs a
// realtime.Session for the (conversation, viewer) pair.
type LiveHandler struct {
	log      *logger.Logger
	auth     services.AuthService
	chat     services.ChatService
	chunks   realtime.ContentReader
	reg      *realtime.Registry
	metrics  *observability.Metrics
	cfg      LiveHandlerConfig
	upgrader websocket.Upgrader
}

func NewLiveHandler(
	log *logger.Logger,
	auth services.AuthService,
	chat services.ChatService,
	chunks realtime.ContentReader,
	reg *realtime.Registry,
	metrics *observability.Metrics,
	cfg LiveHandlerConfig,
) *LiveHandler {
	h := &LiveHandler{
		log:     log.With("handler", "LiveHandler"),
		auth:    auth,
		chat:    chat,
		chunks:  chunks,
		reg:     reg,
		metrics: metrics,
		cfg:     cfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

type liveRejection struct {
	Error     response.APIError `json:"error"`
	CloseCode int               `json:"close_code"`
}

// GET /live/conversations/:id?token=...&new_chat=true
func (h *LiveHandler) Connect(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.reject(c, http.StatusBadRequest, "invalid_id", "invalid conversation id")
		return
	}
	id, err := h.auth.Authenticate(c.Request.Context(), middleware.ExtractToken(c))
	if err != nil {
		h.log.Debug("live auth failed", "conversation_id", convID.String(), "error", err)
		if errors.Is(err, apierr.ErrUnauthorized) {
			h.reject(c, http.StatusUnauthorized, "unauthorized", "authentication failed")
		} else {
			h.reject(c, http.StatusServiceUnavailable, "unavailable", "authentication unavailable")
		}
		return
	}
	ctx := ctxutil.WithIdentity(c.Request.Context(), id)
	conv, err := h.chat.AuthorizeConversation(dbctx.Context{Ctx: ctx}, id, convID)
	if err != nil {
		status, code := apierr.Status(err)
		if status == http.StatusNotFound {
			// Unknown and foreign conversations look the same to the viewer.
			status, code = http.StatusForbidden, "forbidden"
		}
		h.reject(c, status, code, "access denied")
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("websocket upgrade failed", "conversation_id", convID.String(), "error", err)
		return
	}

	key := realtime.Key{ConversationID: conv.ID, ViewerID: id.UserID}
	conn := realtime.NewWSConn(ws, h.cfg.Session.WriteTimeout)
	deps := realtime.SessionDeps{
		Chunks: h.chunks,
		Suggestions: func(sctx context.Context) ([]string, error) {
			return h.chat.Suggestions(dbctx.Context{Ctx: sctx}, conv.ID)
		},
		MessageVisible: func(sctx context.Context, messageID uuid.UUID) bool {
			return h.chat.MessageInConversation(dbctx.Context{Ctx: sctx}, conv.ID, messageID)
		},
	}
	newChat, _ := strconv.ParseBool(strings.TrimSpace(c.Query("new_chat")))
	realtime.NewSession(key, conn, h.reg, deps, h.cfg.Session, newChat, h.log, h.metrics).Run(ctx)
}

func (h *LiveHandler) reject(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, liveRejection{
		Error:     response.APIError{Message: msg, Code: code},
		CloseCode: realtime.ClosePolicyViolation,
	})
}

func (h *LiveHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
