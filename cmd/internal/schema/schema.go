// Package schema owns the PostgreSQL layout and applies it with ordered, idempotent migrations.
package schema

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vanish/cmd/internal/pgutil"
)

type migration struct {
	Version int
	Name    string
	SQL     string
}

// Statements use {{schema}} as the quoted schema placeholder.
var migrations = []migration{
	{
		Version: 1,
		Name:    "identity",
		SQL: `
CREATE TABLE IF NOT EXISTS {{schema}}.users (
  id            text PRIMARY KEY,
  email         text NULL,
  display_name  text NOT NULL,
  role          text NOT NULL CHECK (role IN ('owner', 'admin', 'user')),
  password_hash text NULL,
  created_at    timestamptz NOT NULL,
  CONSTRAINT uq_users_email UNIQUE (email)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_users_single_owner
  ON {{schema}}.users (role) WHERE role = 'owner';

CREATE TABLE IF NOT EXISTS {{schema}}.bootstrap (
  singleton  boolean PRIMARY KEY DEFAULT true CHECK (singleton),
  owner_id   text NOT NULL REFERENCES {{schema}}.users (id),
  created_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS {{schema}}.sessions (
  id_hash    text PRIMARY KEY,
  user_id    text NOT NULL REFERENCES {{schema}}.users (id) ON DELETE CASCADE,
  created_at timestamptz NOT NULL,
  expires_at timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_user_idx ON {{schema}}.sessions (user_id);

CREATE TABLE IF NOT EXISTS {{schema}}.invites (
  id         text PRIMARY KEY,
  token_hash text NOT NULL,
  created_by text NOT NULL REFERENCES {{schema}}.users (id),
  created_at timestamptz NOT NULL,
  expires_at timestamptz NOT NULL,
  max_uses   integer NOT NULL DEFAULT 1 CHECK (max_uses = 1),
  used_by    text NULL REFERENCES {{schema}}.users (id) DEFERRABLE INITIALLY DEFERRED,
  used_at    timestamptz NULL,
  CONSTRAINT uq_invites_token_hash UNIQUE (token_hash),
  CONSTRAINT invites_used_pair CHECK ((used_by IS NULL) = (used_at IS NULL))
);

CREATE INDEX IF NOT EXISTS invites_expires_idx ON {{schema}}.invites (expires_at);
`,
	},
	{
		Version: 2,
		Name:    "drops",
		SQL: `
CREATE TABLE IF NOT EXISTS {{schema}}.drops (
  id              text PRIMARY KEY,
  token           text NOT NULL,
  owner_id        text NULL REFERENCES {{schema}}.users (id),
  kind            text NOT NULL CHECK (kind IN ('text', 'url')),
  title           text NOT NULL,
  body            text NOT NULL,
  ttl_ms          bigint NOT NULL CHECK (ttl_ms > 0),
  max_views       integer NOT NULL CHECK (max_views > 0),
  used_views      integer NOT NULL DEFAULT 0 CHECK (used_views >= 0),
  created_at      timestamptz NOT NULL,
  expires_at      timestamptz NOT NULL,
  revoked_at      timestamptz NULL,
  first_viewed_at timestamptz NULL,
  last_viewed_at  timestamptz NULL,
  exhausted_at    timestamptz NULL,
  CONSTRAINT drops_views_bounded CHECK (used_views <= max_views),
  CONSTRAINT drops_exhausted_consistent CHECK ((exhausted_at IS NOT NULL) = (used_views = max_views))
);

CREATE UNIQUE INDEX IF NOT EXISTS drops_token_idx ON {{schema}}.drops (token);
CREATE INDEX IF NOT EXISTS drops_state_idx ON {{schema}}.drops (expires_at, revoked_at, used_views, max_views);
CREATE INDEX IF NOT EXISTS drops_owner_idx ON {{schema}}.drops (owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS {{schema}}.views (
  id        text PRIMARY KEY,
  drop_id   text NOT NULL REFERENCES {{schema}}.drops (id),
  viewed_at timestamptz NOT NULL,
  ua        text NULL,
  ip        text NULL
);

CREATE INDEX IF NOT EXISTS views_drop_time_idx ON {{schema}}.views (drop_id, viewed_at);
CREATE INDEX IF NOT EXISTS views_time_idx ON {{schema}}.views (viewed_at);
`,
	},
}

// Latest is the highest known migration version.
func Latest() int {
	return migrations[len(migrations)-1].Version
}

func render(schema, sql string) string {
	return strings.ReplaceAll(sql, "{{schema}}", pgx.Identifier{schema}.Sanitize())
}

func lockKey(schema string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("vanish.schema:" + schema))
	return int64(h.Sum64())
}

// Apply creates schema if needed and runs every pending migration, each in its own transaction
// under a transaction-scoped advisory lock so concurrent starters serialize.
func Apply(ctx context.Context, pool *pgxpool.Pool, schema string, log *slog.Logger) error {
	if pool == nil {
		return fmt.Errorf("schema: nil pool")
	}
	schema, err := pgutil.CheckSchema(schema)
	if err != nil {
		return err
	}
	if log == nil {
		log = slog.Default()
	}

	quoted := pgx.Identifier{schema}.Sanitize()
	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+quoted); err != nil {
		return fmt.Errorf("schema: create schema: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+pgutil.Ident(schema, "schema_migrations")+` (
  version    integer PRIMARY KEY,
  name       text NOT NULL,
  applied_at timestamptz NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("schema: create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := applyOne(ctx, pool, schema, m)
		if err != nil {
			return fmt.Errorf("schema: migration %d (%s): %w", m.Version, m.Name, err)
		}
		if applied {
			log.Info("schema.migration.applied",
				slog.String("schema", schema),
				slog.Int("version", m.Version),
				slog.String("name", m.Name),
			)
		}
	}
	return nil
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, schema string, m migration) (bool, error) {
	tx, err := pool.BeginTx(ctx, pgutil.ReadWrite)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(schema)); err != nil {
		return false, err
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+pgutil.Ident(schema, "schema_migrations")+` WHERE version = $1)`,
		m.Version,
	).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, render(schema, m.SQL)); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO `+pgutil.Ident(schema, "schema_migrations")+` (version, name, applied_at) VALUES ($1, $2, $3)`,
		m.Version, m.Name, time.Now().UTC(),
	); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
