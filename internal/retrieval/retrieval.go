// Package retrieval implements the nearest-neighbour context lookup behind
// the retrieval agent (SPEC_FULL.md §4.4): one pgvector-indexed table of
// turns and one of ingested-document chunks per recording, created lazily on
// first insert. It is grounded directly on the teacher's L2 semantic index
// (upsert-by-id plus cosine-distance ORDER BY), generalised from a single
// global chunks table to one pair of tables per recording.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// similarityCutoff is the minimum cosine similarity (derived from pgvector's
// L2 distance as 1 - d²/2) a result must clear to be included.
const similarityCutoff = 0.70

// safeName matches identifiers that may be used verbatim (after translating
// '-' to '_') as part of a SQL table name.
var safeName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Kind distinguishes which table a chunk belongs to.
type Kind string

const (
	KindTurn     Kind = "turn"
	KindResource Kind = "resource"
)

// Chunk is a single embedded unit of content bound to a recording.
type Chunk struct {
	ID        string
	Content   string
	Embedding []float32
	Filename  string // set for KindResource chunks, labels the source document
	CreatedAt time.Time
}

// Result is a scored retrieval hit, tagged with a human-readable source label
// ("History" or "Doc: <filename>") per SPEC_FULL.md §4.4 step 3.
type Result struct {
	Chunk
	Source     string
	Similarity float64
}

// Store is a PostgreSQL + pgvector backed implementation of per-recording
// retrieval tables.
//
// All methods are safe for concurrent use.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
	topK       int
}

// New wraps an already-migrated connection pool. dimensions must match the
// configured embeddings provider's output size; topK bounds how many results
// Search returns after merging turns and resources.
func New(pool *pgxpool.Pool, dimensions, topK int) *Store {
	return &Store{pool: pool, dimensions: dimensions, topK: topK}
}

// IngestTurn embeds and stores a turn chunk for recordingID, creating the
// recording's turn table on first use.
func (s *Store) IngestTurn(ctx context.Context, recordingID string, chunk Chunk) error {
	table := turnsTable(recordingID)
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}
	return s.upsert(ctx, table, chunk)
}

// IngestResource embeds and stores a document chunk for recordingID, creating
// the recording's resource table on first use.
func (s *Store) IngestResource(ctx context.Context, recordingID string, chunk Chunk) error {
	table := resourcesTable(recordingID)
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}
	return s.upsert(ctx, table, chunk)
}

// Search runs a nearest-neighbour search over both the turn and resource
// tables for recordingID, merges the hits, drops anything below
// [similarityCutoff], sorts by similarity descending, and truncates to the
// store's configured top-k.
func (s *Store) Search(ctx context.Context, recordingID string, queryEmbedding []float32) ([]Result, error) {
	turnHits, err := s.searchTable(ctx, turnsTable(recordingID), queryEmbedding, "History")
	if err != nil {
		return nil, err
	}
	resourceHits, err := s.searchResourceTable(ctx, resourcesTable(recordingID), queryEmbedding)
	if err != nil {
		return nil, err
	}

	merged := append(turnHits, resourceHits...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Similarity > merged[j].Similarity })

	if len(merged) > s.topK {
		merged = merged[:s.topK]
	}
	return merged, nil
}

// DeleteRecording drops both of recordingID's retrieval tables, if they
// exist.
func (s *Store) DeleteRecording(ctx context.Context, recordingID string) error {
	for _, table := range []string{turnsTable(recordingID), resourcesTable(recordingID)} {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
			return fmt.Errorf("retrieval: drop table %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) ensureTable(ctx context.Context, table string) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
		    id         TEXT        PRIMARY KEY,
		    content    TEXT        NOT NULL,
		    embedding  vector(%[2]d),
		    filename   TEXT        NOT NULL DEFAULT '',
		    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding
		    ON %[1]s USING hnsw (embedding vector_cosine_ops);`, table, s.dimensions)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("retrieval: create table %s: %w", table, err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, table string, chunk Chunk) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, filename, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    content    = EXCLUDED.content,
		    embedding  = EXCLUDED.embedding,
		    filename   = EXCLUDED.filename,
		    created_at = EXCLUDED.created_at`, table)

	vec := pgvector.NewVector(chunk.Embedding)
	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, q, chunk.ID, chunk.Content, vec, chunk.Filename, createdAt)
	if err != nil {
		return fmt.Errorf("retrieval: upsert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) searchTable(ctx context.Context, table string, queryEmbedding []float32, source string) ([]Result, error) {
	vec := pgvector.NewVector(queryEmbedding)
	q := fmt.Sprintf(`
		SELECT id, content, embedding, filename, created_at, embedding <-> $1 AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2`, table)

	rows, err := s.pool.Query(ctx, q, vec, s.topK)
	if err != nil {
		if isUndefinedTable(err) {
			return []Result{}, nil
		}
		return nil, fmt.Errorf("retrieval: search %s: %w", table, err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Result, error) {
		var r Result
		var stored pgvector.Vector
		var distance float64
		if err := row.Scan(&r.ID, &r.Content, &stored, &r.Filename, &r.CreatedAt, &distance); err != nil {
			return Result{}, err
		}
		r.Embedding = stored.Slice()
		r.Similarity = cosineFromL2(distance)
		r.Source = source
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: scan %s: %w", table, err)
	}
	return filterByCutoff(results), nil
}

func (s *Store) searchResourceTable(ctx context.Context, table string, queryEmbedding []float32) ([]Result, error) {
	results, err := s.searchTable(ctx, table, queryEmbedding, "")
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Source = "Doc: " + results[i].Filename
	}
	return results, nil
}

func filterByCutoff(results []Result) []Result {
	out := results[:0]
	for _, r := range results {
		if r.Similarity >= similarityCutoff {
			out = append(out, r)
		}
	}
	return out
}

// cosineFromL2 converts pgvector's L2 distance between two normalised
// embeddings into a cosine similarity score.
func cosineFromL2(l2 float64) float64 {
	return 1 - (l2*l2)/2
}

// isUndefinedTable reports whether err is Postgres error 42P01 (a query
// against a recording's table before it has ever been ingested into).
func isUndefinedTable(err error) bool {
	return strings.Contains(err.Error(), "42P01") || strings.Contains(err.Error(), "does not exist")
}

func turnsTable(recordingID string) string {
	return "recording_" + safeTableID(recordingID)
}

func resourcesTable(recordingID string) string {
	return "resources_" + safeTableID(recordingID)
}

// safeTableID implements the per-recording table-naming rule: ids composed
// only of [A-Za-z0-9_.-] are used verbatim with '-' mapped to '_'; anything
// else falls back to a hex SHA-256 digest so no untrusted recording id can
// inject SQL via the table name.
func safeTableID(recordingID string) string {
	if safeName.MatchString(recordingID) {
		return strings.ReplaceAll(recordingID, "-", "_")
	}
	sum := sha256.Sum256([]byte(recordingID))
	return hex.EncodeToString(sum[:])
}
