package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/chatrelay-backend/internal/clients/generation"
	"github.com/yungbote/chatrelay-backend/internal/data/repos/testutil"
	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/domain/chat"
	"github.com/yungbote/chatrelay-backend/internal/platform/apierr"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
)

func TestSendMessageDispatchesAndMarksProcessing(t *testing.T) {
	h := newHarness(t)
	u, c := h.seed("send@example.com")
	prior := testutil.SeedMessage(t, context.Background(), h.db, c.ID, types.MessageKindUser, types.StatusCompleted, "earlier")
	_ = testutil.SeedMessage(t, context.Background(), h.db, c.ID, types.MessageKindGenerated, types.StatusCompleted, "earlier answer")
	f := testutil.SeedFile(t, context.Background(), h.db, u.ID, "notes.txt", "file text")

	h.gen.resp = &generation.Response{
		RequestID:   "req-9",
		Status:      "accepted",
		Name:        "Tax questions",
		Cluster:     []string{"taxes", "contracts", "banking"},
		Suggestions: []string{"What about VAT?"},
	}

	var dispatch func()
	h.chat.goFn = func(f func()) { dispatch = f }
	res, err := h.chat.SendMessage(h.userCtx(u), c.ID, SendMessageInput{Content: "  Hello  ", FileIDs: []uuid.UUID{f.ID}})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.UserMessage.Content != "Hello" || res.UserMessage.Status != types.StatusCompleted {
		t.Fatalf("user message: %+v", res.UserMessage)
	}
	if res.GeneratedMessage.Status != types.StatusPending || res.GeneratedMessage.Kind != types.MessageKindGenerated {
		t.Fatalf("generated message before dispatch: %+v", res.GeneratedMessage)
	}
	if got := h.message(res.GeneratedMessage.ID).Status; got != types.StatusPending {
		t.Fatalf("stored generated status before dispatch: want=pending got=%s", got)
	}
	if dispatch == nil || len(h.gen.reqs) != 0 {
		t.Fatalf("dispatch should be deferred to the background runner")
	}
	dispatch()
	if len(h.gen.reqs) != 1 {
		t.Fatalf("generation calls: want=1 got=%d", len(h.gen.reqs))
	}
	req := h.gen.reqs[0]
	if req.Message != "Hello" {
		t.Fatalf("request message: %q", req.Message)
	}
	if len(req.ConversationHistory) != 2 || req.ConversationHistory[0].Content != prior.Content ||
		req.ConversationHistory[0].Role != "user" || req.ConversationHistory[1].Role != "assistant" {
		t.Fatalf("history: %+v", req.ConversationHistory)
	}
	if len(req.Files) != 1 || req.Files[0].Content != "file text" {
		t.Fatalf("files: %+v", req.Files)
	}
	wantURL := "http://relay.test/api/conversations/" + c.ID.String() + "/messages/" + res.GeneratedMessage.ID.String() + "/callback"
	if req.CallbackURL != wantURL {
		t.Fatalf("callback url: want=%s got=%s", wantURL, req.CallbackURL)
	}

	if got := h.message(res.GeneratedMessage.ID).Status; got != types.StatusProcessing {
		t.Fatalf("generated status: want=processing got=%s", got)
	}
	conv := h.conversation(c.ID)
	if conv.Title != "Tax questions" {
		t.Fatalf("title: %q", conv.Title)
	}
	if strings.Join(conv.SubCategories, ",") != "taxes,contracts,banking" {
		t.Fatalf("sub categories: %v", conv.SubCategories)
	}
	if strings.Join(conv.Categories, ",") != "finance,legal" {
		t.Fatalf("categories: %v", conv.Categories)
	}
	sugg := h.relay.ofType(realtime.EventSuggestions)
	if len(sugg) != 1 || sugg[0].key.ViewerID != u.ID || sugg[0].ev.Suggestions[0] != "What about VAT?" {
		t.Fatalf("suggestions relay: %+v", sugg)
	}
}

func TestSendMessageGenerationFailureMarksFailed(t *testing.T) {
	h := newHarness(t)
	u, c := h.seed("fail@example.com")
	h.gen.err = errors.New("connection refused")

	res, err := h.chat.SendMessage(h.userCtx(u), c.ID, SendMessageInput{Content: "Hello"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	m := h.message(res.GeneratedMessage.ID)
	if m.Status != types.StatusFailed || m.Content != chat.FailedPlaceholder {
		t.Fatalf("generated message: status=%s content=%q", m.Status, m.Content)
	}
	if n := len(h.relay.ofType(realtime.EventChunk)); n != 0 {
		t.Fatalf("chunk events: want=0 got=%d", n)
	}
}

func TestSendMessageRejectsEmptyAndForeign(t *testing.T) {
	h := newHarness(t)
	u, c := h.seed("owner@example.com")
	other, _ := h.seed("other@example.com")

	if _, err := h.chat.SendMessage(h.userCtx(u), c.ID, SendMessageInput{Content: "   "}); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("empty content: want invalid argument got %v", err)
	}
	if _, err := h.chat.SendMessage(h.userCtx(other), c.ID, SendMessageInput{Content: "hi"}); !errors.Is(err, apierr.ErrForbidden) {
		t.Fatalf("foreign conversation: want forbidden got %v", err)
	}
	if _, err := h.chat.SendMessage(dbctx.Context{Ctx: context.Background()}, c.ID, SendMessageInput{Content: "hi"}); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("anonymous: want unauthorized got %v", err)
	}
	if len(h.gen.reqs) != 0 {
		t.Fatalf("generation should not be called")
	}
}

func TestAuthorizeConversationAllowsAdmin(t *testing.T) {
	h := newHarness(t)
	_, c := h.seed("owner@example.com")
	admin := testutil.SeedUser(t, context.Background(), h.db, "admin@example.com")
	admin.IsAdmin = true

	got, err := h.chat.GetConversation(h.userCtx(admin), c.ID)
	if err != nil || got.ID != c.ID {
		t.Fatalf("admin access: conv=%v err=%v", got, err)
	}
	if _, err := h.chat.GetConversation(h.userCtx(admin), uuid.New()); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("missing conversation: want not found got %v", err)
	}
}

func TestAddReactionReplacesPrevious(t *testing.T) {
	h := newHarness(t)
	u, c := h.seed("react@example.com")
	m := testutil.SeedMessage(t, context.Background(), h.db, c.ID, types.MessageKindGenerated, types.StatusCompleted, "answer")
	dbc := h.userCtx(u)

	if _, err := h.chat.AddReaction(dbc, c.ID, m.ID, "like"); err != nil {
		t.Fatalf("like: %v", err)
	}
	if _, err := h.chat.AddReaction(dbc, c.ID, m.ID, "Dislike"); err != nil {
		t.Fatalf("dislike: %v", err)
	}
	if _, err := h.chat.AddReaction(dbc, c.ID, m.ID, "love"); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("bad reaction: want invalid argument got %v", err)
	}
	msgs, _, err := h.chat.ListMessages(dbc, c.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || len(msgs[0].Reactions) != 1 || msgs[0].Reactions[0].Type != "dislike" {
		t.Fatalf("reactions: %+v", msgs)
	}
}

func TestCreateAndListConversations(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, context.Background(), h.db, "list@example.com")
	dbc := h.userCtx(u)

	created, err := h.chat.CreateConversation(dbc, "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if created.Title != types.DefaultConversationTitle {
		t.Fatalf("default title: %q", created.Title)
	}
	if _, err := h.chat.CreateConversation(dbc, "Budget"); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	list, total, err := h.chat.ListConversations(dbc, 0, 10)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("list: total=%d len=%d", total, len(list))
	}
}
