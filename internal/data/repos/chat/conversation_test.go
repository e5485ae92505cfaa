package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/chatrelay-backend/internal/data/repos/testutil"
	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
)

func TestConversationRepoCreateListUpdate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	u := testutil.SeedUser(t, ctx, tx, "conv@example.com")
	other := testutil.SeedUser(t, ctx, tx, "other@example.com")
	testutil.SeedConversation(t, ctx, tx, other.ID)

	repo := NewConversationRepo(db, testutil.Logger(t))
	created, err := repo.Create(dbc, &types.Conversation{UserID: u.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil || created.Title != types.DefaultConversationTitle {
		t.Fatalf("Create: unexpected row %+v", created)
	}

	rows, total, err := repo.ListByUser(dbc, u.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].ID != created.ID {
		t.Fatalf("ListByUser: total=%d rows=%+v", total, rows)
	}

	if err := repo.UpdateFields(dbc, created.ID, map[string]interface{}{
		"title":       "Tax questions",
		"suggestions": datatypes.JSONSlice[string]{"What about VAT?"},
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err := repo.GetByID(dbc, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Tax questions" || len(got.Suggestions) != 1 || got.Suggestions[0] != "What about VAT?" {
		t.Fatalf("unexpected conversation after update: %+v", got)
	}
}
