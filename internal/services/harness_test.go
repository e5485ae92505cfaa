package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/chatrelay-backend/internal/clients/generation"
	"github.com/yungbote/chatrelay-backend/internal/data/repos"
	"github.com/yungbote/chatrelay-backend/internal/data/repos/testutil"
	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
	"github.com/yungbote/chatrelay-backend/internal/realtime/chunkstore"
)

type published struct {
	key realtime.Key
	ev  realtime.Event
}

type recordingRelay struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingRelay) Publish(_ context.Context, key realtime.Key, ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{key: key, ev: ev})
}

func (r *recordingRelay) ofType(typ string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, p := range r.events {
		if p.ev.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

type fakeGenerator struct {
	mu   sync.Mutex
	reqs []generation.Request
	resp *generation.Response
	err  error
}

func (f *fakeGenerator) Submit(_ context.Context, req generation.Request) (*generation.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// failingStore errors on the operations named in failOn.
type failingStore struct {
	chunkstore.Store
	mu         sync.Mutex
	failAppend bool
	failRead   bool
	appends    int
	// beforeAppend runs ahead of every append, outside the lock.
	beforeAppend func()
}

func (f *failingStore) Append(ctx context.Context, id uuid.UUID, chunkID, text string) (bool, error) {
	f.mu.Lock()
	f.appends++
	fail, hook := f.failAppend, f.beforeAppend
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if fail {
		return false, errors.New("store down")
	}
	return f.Store.Append(ctx, id, chunkID, text)
}

func (f *failingStore) Read(ctx context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	fail := f.failRead
	f.mu.Unlock()
	if fail {
		return "", errors.New("store down")
	}
	return f.Store.Read(ctx, id)
}

func (f *failingStore) set(fn func(f *failingStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type harness struct {
	t        *testing.T
	db       *gorm.DB
	relay    *recordingRelay
	gen      *fakeGenerator
	store    *failingStore
	chat     *chatService
	callback CallbackService

	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	sources       repos.SourceRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	h := &harness{
		t:             t,
		db:            db,
		relay:         &recordingRelay{},
		gen:           &fakeGenerator{resp: &generation.Response{RequestID: "req-1", Status: "accepted"}},
		store:         &failingStore{Store: chunkstore.NewMemory(0)},
		conversations: repos.NewConversationRepo(db, log),
		messages:      repos.NewMessageRepo(db, log),
		sources:       repos.NewSourceRepo(db, log),
	}
	tax, err := LoadTaxonomy("")
	if err != nil {
		t.Fatalf("LoadTaxonomy: %v", err)
	}
	svc := NewChatService(db, log, h.conversations, h.messages, repos.NewReactionRepo(db, log), repos.NewFileRepo(db, log),
		h.gen, h.relay, tax, nil, ChatServiceConfig{CallbackBaseURL: "http://relay.test/api/"})
	h.chat = svc.(*chatService)
	h.chat.goFn = func(f func()) { f() }
	h.callback = NewCallbackService(db, log, h.conversations, h.messages, h.sources, h.store, h.relay, nil)
	return h
}

func (h *harness) userCtx(u *types.User) dbctx.Context {
	ctx := ctxutil.WithIdentity(context.Background(), &ctxutil.Identity{UserID: u.ID, IsAdmin: u.IsAdmin})
	return dbctx.Context{Ctx: ctx}
}

func (h *harness) seed(email string) (*types.User, *types.Conversation) {
	h.t.Helper()
	ctx := context.Background()
	u := testutil.SeedUser(h.t, ctx, h.db, email)
	return u, testutil.SeedConversation(h.t, ctx, h.db, u.ID)
}

func (h *harness) message(id uuid.UUID) *types.Message {
	h.t.Helper()
	m, err := h.messages.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		h.t.Fatalf("GetByID: %v", err)
	}
	return m
}

func (h *harness) conversation(id uuid.UUID) *types.Conversation {
	h.t.Helper()
	c, err := h.conversations.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		h.t.Fatalf("GetByID: %v", err)
	}
	return c
}

func chunk(id int, content string, final bool) *CallbackPayload {
	return &CallbackPayload{ChunkID: []byte(strconv.Itoa(id)), Content: &content, IsFinal: &final}
}
