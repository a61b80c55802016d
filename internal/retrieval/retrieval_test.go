package retrieval_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/liveink/liveink/internal/retrieval"
)

const testDimensions = 4

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("LIVEINK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LIVEINK_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T, recordingID string) *retrieval.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	store := retrieval.New(pool, testDimensions, 5)
	t.Cleanup(func() { _ = store.DeleteRecording(context.Background(), recordingID) })
	if err := store.DeleteRecording(ctx, recordingID); err != nil {
		t.Fatalf("DeleteRecording (pre-clean): %v", err)
	}
	return store
}

func TestIngestTurnAndSearch(t *testing.T) {
	const recID = "rec-search-1"
	s := newTestStore(t, recID)
	ctx := context.Background()

	if err := s.IngestTurn(ctx, recID, retrieval.Chunk{
		ID:        "turn-1",
		Content:   "The blacksmith's forge is on the east road.",
		Embedding: []float32{1, 0, 0, 0},
	}); err != nil {
		t.Fatalf("IngestTurn: %v", err)
	}

	results, err := s.Search(ctx, recID, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Source != "History" {
		t.Errorf("Source = %q, want History", results[0].Source)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("Similarity = %v, want ~1.0 for identical vectors", results[0].Similarity)
	}
}

func TestIngestResourceTagsFilename(t *testing.T) {
	const recID = "rec-search-2"
	s := newTestStore(t, recID)
	ctx := context.Background()

	if err := s.IngestResource(ctx, recID, retrieval.Chunk{
		ID:        "chunk-1",
		Content:   "Chapter 1: Origins.",
		Filename:  "notes.md",
		Embedding: []float32{0, 1, 0, 0},
	}); err != nil {
		t.Fatalf("IngestResource: %v", err)
	}

	results, err := s.Search(ctx, recID, []float32{0, 1, 0, 0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Source != "Doc: notes.md" {
		t.Errorf("Source = %q, want %q", results[0].Source, "Doc: notes.md")
	}
}

func TestSearch_NoTablesYetReturnsEmpty(t *testing.T) {
	const recID = "rec-search-never-ingested"
	s := newTestStore(t, recID)
	ctx := context.Background()

	results, err := s.Search(ctx, recID, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
}

func TestSearch_BelowCutoffIsExcluded(t *testing.T) {
	const recID = "rec-search-cutoff"
	s := newTestStore(t, recID)
	ctx := context.Background()

	if err := s.IngestTurn(ctx, recID, retrieval.Chunk{
		ID:        "turn-orthogonal",
		Content:   "Completely unrelated content.",
		Embedding: []float32{0, 0, 0, 1},
	}); err != nil {
		t.Fatalf("IngestTurn: %v", err)
	}

	// An orthogonal vector has L2 distance sqrt(2) from the query, giving
	// cosine similarity 1 - 2/2 = 0, well below the 0.70 cutoff.
	results, err := s.Search(ctx, recID, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want empty (below cutoff)", results)
	}
}
