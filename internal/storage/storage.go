// Package storage bootstraps the single PostgreSQL connection pool shared by
// the state store, history store, and retrieval store — the same
// one-pool-three-layers arrangement the teacher's memory package used for its
// session log, semantic index, and knowledge graph.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// ddlCore creates the tables owned directly by this package: the
// active-recording pointer, per-recording document state, and the commit log.
// Per-recording retrieval tables are created lazily by internal/retrieval,
// since their names are not known until a recording's first ingest.
const ddlCore = `
CREATE TABLE IF NOT EXISTS active_recording (
    id           SMALLINT     PRIMARY KEY DEFAULT 1,
    recording_id TEXT         NOT NULL DEFAULT '',
    status       TEXT         NOT NULL DEFAULT 'idle',
    CONSTRAINT single_row CHECK (id = 1)
);

CREATE TABLE IF NOT EXISTS document_states (
    recording_id TEXT         PRIMARY KEY,
    todos        JSONB        NOT NULL DEFAULT '[]',
    focus        TEXT         NOT NULL DEFAULT '',
    commit_ring  JSONB        NOT NULL DEFAULT '[]',
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS commits (
    id           BIGSERIAL    PRIMARY KEY,
    recording_id TEXT         NOT NULL,
    hash         TEXT         NOT NULL,
    message      TEXT         NOT NULL,
    content      TEXT         NOT NULL,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_commits_recording_id
    ON commits (recording_id);

CREATE INDEX IF NOT EXISTS idx_commits_recording_created
    ON commits (recording_id, created_at DESC);
`

// NewPool opens a connection pool to dsn, registers pgvector's codecs on every
// new connection, and runs [Migrate] before returning.
//
// embeddingDimensions must match the dimensionality produced by the
// configured embeddings provider; it is baked into the retrieval store's
// per-recording table columns the first time each is created.
func NewPool(ctx context.Context, dsn string, embeddingDimensions int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	return pool, nil
}

// Migrate creates the core tables if they do not already exist. It is
// idempotent and safe to call on every application start. Per-recording
// retrieval tables are migrated separately by internal/retrieval as each
// recording is first used.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlCore); err != nil {
		return fmt.Errorf("storage: migrate core tables: %w", err)
	}
	return nil
}
