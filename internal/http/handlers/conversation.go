package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatrelay-backend/internal/http/response"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/services"
)

type ConversationHandler struct {
	chat services.ChatService
}

func NewConversationHandler(chat services.ChatService) *ConversationHandler {
	return &ConversationHandler{chat: chat}
}

type createConversationReq struct {
	Title string `json:"title"`
}

// POST /api/conversations
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req createConversationReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	conv, err := h.chat.CreateConversation(dbc, req.Title)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

// GET /api/conversations?offset=0&limit=20
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	offset, limit := pageParams(c, 20)
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	convs, total, err := h.chat.ListConversations(dbc, offset, limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"conversations": convs, "total": total, "offset": offset, "limit": limit})
}

// GET /api/conversations/:id
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	convID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	conv, err := h.chat.GetConversation(dbc, convID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"conversation": conv})
}

// GET /api/conversations/:id/messages?offset=0&limit=50
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	convID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	offset, limit := pageParams(c, 50)
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, total, err := h.chat.ListMessages(dbc, convID, offset, limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs, "total": total, "offset": offset, "limit": limit})
}

type sendMessageReq struct {
	Content string      `json:"content"`
	FileIDs []uuid.UUID `json:"file_ids"`
}

// POST /api/conversations/:id/messages
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	convID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	res, err := h.chat.SendMessage(dbc, convID, services.SendMessageInput{Content: req.Content, FileIDs: req.FileIDs})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

type reactionReq struct {
	ReactionType string `json:"reaction_type"`
}

// POST /api/conversations/:id/messages/:message_id/reaction
func (h *ConversationHandler) AddReaction(c *gin.Context) {
	convID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	msgID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	var req reactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	reaction, err := h.chat.AddReaction(dbc, convID, msgID, req.ReactionType)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reaction": reaction})
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, errors.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context, defLimit int) (int, int) {
	offset, limit := 0, defLimit
	if v := strings.TrimSpace(c.Query("offset")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}
