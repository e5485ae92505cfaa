package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatrelay-backend/internal/http/response"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/services"
)

// CallbackHandler receives streamed output from the generation service. It is
// not behind identity auth; the generation service addresses it by URL.
type CallbackHandler struct {
	log      *logger.Logger
	callback services.CallbackService
}

func NewCallbackHandler(log *logger.Logger, callback services.CallbackService) *CallbackHandler {
	return &CallbackHandler{log: log.With("handler", "CallbackHandler"), callback: callback}
}

// POST /api/conversations/:id/messages/:message_id/callback
func (h *CallbackHandler) Ingest(c *gin.Context) {
	convID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	msgID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	var payload services.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.callback.Ingest(dbc, convID, msgID, &payload); err != nil {
		h.log.Warn("callback rejected", "conversation_id", convID.String(), "message_id", msgID.String(), "error", err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success"})
}
