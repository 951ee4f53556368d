package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"jsonprompt-saas/internal/config"
	pg "jsonprompt-saas/internal/infra/db/postgres"
	"jsonprompt-saas/internal/infra/logging"
	"jsonprompt-saas/internal/usecase"
)

// Schema for a fresh database. String columns that back optional references
// default to '' so repository scans never hit NULL.
const schema = `
CREATE TABLE IF NOT EXISTS users (
  id                   TEXT PRIMARY KEY,
  email                TEXT NOT NULL UNIQUE,
  plan                 TEXT NOT NULL,
  credits              INT  NOT NULL,
  daily_prompts_used   INT  NOT NULL DEFAULT 0,
  monthly_prompts_used INT  NOT NULL DEFAULT 0,
  total_prompts_used   INT  NOT NULL DEFAULT 0,
  last_free_reset      TIMESTAMPTZ NOT NULL,
  last_monthly_reset   TIMESTAMPTZ NOT NULL,
  plan_start_date      TIMESTAMPTZ,
  plan_end_date        TIMESTAMPTZ,
  subscription_status  TEXT NOT NULL DEFAULT 'none',
  external_provider    TEXT NOT NULL DEFAULT '',
  external_ref         TEXT NOT NULL DEFAULT '',
  pending_order_ref    TEXT NOT NULL DEFAULT '',
  registered_at        TIMESTAMPTZ NOT NULL,
  last_active_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_external_ref
  ON users (external_provider, external_ref) WHERE external_ref <> '';
CREATE INDEX IF NOT EXISTS idx_users_pending_order
  ON users (pending_order_ref) WHERE pending_order_ref <> '';

CREATE TABLE IF NOT EXISTS processed_events (
  user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  event_id     TEXT NOT NULL,
  processed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (user_id, event_id)
);

CREATE TABLE IF NOT EXISTS prompts (
  id          TEXT PRIMARY KEY,
  user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  input       TEXT NOT NULL,
  artifact    TEXT NOT NULL,
  tier        TEXT NOT NULL,
  token_count INT  NOT NULL DEFAULT 0,
  created_at  TIMESTAMPTZ NOT NULL,
  expires_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prompts_user ON prompts (user_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_prompts_expiry ON prompts (expires_at);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	demo := flag.Bool("demo", false, "also create demo users")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	if !*demo {
		return
	}

	logger := logging.New(cfg.Log, true)
	userRepo := pg.NewUserRepo(pool)
	txManager := pg.NewTxManager(pool)
	userUC := usecase.NewUserUseCase(userRepo, txManager, logger)

	now := time.Now().UTC()
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		usr, created, err := userUC.RegisterOrFetch(ctx, email, now)
		if err != nil {
			log.Fatalf("seed user %q: %v", email, err)
		}
		if created {
			fmt.Printf("seeded: %s (id=%s, plan=%s, credits=%d)\n", usr.Email, usr.ID, usr.Plan, usr.Credits)
		} else {
			fmt.Printf("exists: %s (id=%s)\n", usr.Email, usr.ID)
		}
	}
	fmt.Println("seeding complete")
}
