// Command issue_token ensures a user exists and prints a signed identity token for it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/chatrelay-backend/internal/data/db"
	"github.com/yungbote/chatrelay-backend/internal/data/repos"
	types "github.com/yungbote/chatrelay-backend/internal/domain"
	"github.com/yungbote/chatrelay-backend/internal/platform/apierr"
	"github.com/yungbote/chatrelay-backend/internal/platform/dbctx"
	"github.com/yungbote/chatrelay-backend/internal/platform/envutil"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/services"
)

func main() {
	_ = godotenv.Load(".env")

	email := flag.String("email", "", "user email (created when missing)")
	name := flag.String("name", "", "display name for a new user")
	admin := flag.Bool("admin", false, "grant admin to a new user")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(os.Stderr, "usage: issue_token -email user@example.com [-name N] [-admin] [-ttl 24h]")
		os.Exit(2)
	}

	log, err := logger.New("production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log, db.PostgresConfig{
		Host:     envutil.String("POSTGRES_HOST", "localhost", nil),
		Port:     envutil.String("POSTGRES_PORT", "5432", nil),
		User:     envutil.String("POSTGRES_USER", "postgres", nil),
		Password: envutil.String("POSTGRES_PASSWORD", "", nil),
		Name:     envutil.String("POSTGRES_NAME", "chatrelay", nil),
		SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable", nil),
	})
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	defer pg.Close()
	if err := pg.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}

	ctx := context.Background()
	userRepo := repos.NewUserRepo(pg.DB(), log)
	dbc := dbctx.Context{Ctx: ctx}

	user, err := userRepo.GetByEmail(dbc, *email)
	if errors.Is(err, apierr.ErrNotFound) {
		created, cerr := userRepo.Create(dbc, []*types.User{{
			Email:       strings.ToLower(strings.TrimSpace(*email)),
			DisplayName: *name,
			IsAdmin:     *admin,
			IsActive:    true,
		}})
		if cerr != nil {
			log.Fatal("create user failed", "error", cerr)
		}
		user = created[0]
		log.Info("created user", "user_id", user.ID.String())
	} else if err != nil {
		log.Fatal("lookup user failed", "error", err)
	}

	auth := services.NewAuthService(log, userRepo, envutil.String("JWT_SECRET_KEY", "defaultsecret", nil), *ttl)
	token, err := auth.IssueToken(ctx, user.ID)
	if err != nil {
		log.Fatal("issue token failed", "error", err)
	}
	fmt.Println(token)
}
