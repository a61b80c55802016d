// Package historystore appends and queries the commit log backing rollback
// and undo: one row per finalised document change, newest-first, keyed to a
// recording. It plays the same role for this domain that the teacher's L1
// session log plays for transcripts — an append-only record queried by
// recording id — but rows carry a full document snapshot instead of a
// speaker utterance.
package historystore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pmezard/go-difflib/difflib"
)

// Entry is a single commit: the document content as it stood immediately
// after the commit, plus its message and content-derived hash.
type Entry struct {
	Hash     string
	Message  string
	Content  string
	Recorded time.Time
}

// Store is a PostgreSQL-backed, append-only commit log.
//
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-migrated connection pool. Use [storage.NewPool] to
// obtain one.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Commit appends a new entry to recordingID's history and returns the hash it
// was assigned. The hash is derived from the content and timestamp so two
// commits with identical content at different times never collide.
func (s *Store) Commit(ctx context.Context, recordingID, message, content string) (string, error) {
	now := time.Now().UTC()
	hash := commitHash(recordingID, content, now)

	const q = `
		INSERT INTO commits (recording_id, hash, message, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.pool.Exec(ctx, q, recordingID, hash, message, content, now); err != nil {
		return "", fmt.Errorf("historystore: commit: %w", err)
	}
	return hash, nil
}

// RecentMessages returns the commit messages for recordingID, newest-first,
// capped at limit.
func (s *Store) RecentMessages(ctx context.Context, recordingID string, limit int) ([]string, error) {
	const q = `
		SELECT message FROM commits
		WHERE recording_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, recordingID, limit)
	if err != nil {
		return nil, fmt.Errorf("historystore: recent messages: %w", err)
	}
	messages, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("historystore: scan recent messages: %w", err)
	}
	if messages == nil {
		messages = []string{}
	}
	return messages, nil
}

// RecentEntries returns the last limit commits for recordingID, newest-first
// — used by the UNDO agent to choose a rollback target.
func (s *Store) RecentEntries(ctx context.Context, recordingID string, limit int) ([]Entry, error) {
	const q = `
		SELECT hash, message, content, created_at FROM commits
		WHERE recording_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, recordingID, limit)
	if err != nil {
		return nil, fmt.Errorf("historystore: recent entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Hash, &e.Message, &e.Content, &e.Recorded)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("historystore: scan recent entries: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Diff returns a unified diff of newContent against recordingID's most
// recent commit, for feeding to a commit-message generator. Returns an empty
// string, with no error, when recordingID has no prior commit — the caller
// is expected to treat that as "nothing to diff against" rather than a
// failure.
func (s *Store) Diff(ctx context.Context, recordingID, newContent string) (string, error) {
	previous, err := s.RecentEntries(ctx, recordingID, 1)
	if err != nil {
		return "", fmt.Errorf("historystore: diff: %w", err)
	}
	if len(previous) == 0 {
		return "", nil
	}

	udiff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous[0].Content),
		B:        difflib.SplitLines(newContent),
		FromFile: "previous",
		ToFile:   "current",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(udiff)
	if err != nil {
		return "", fmt.Errorf("historystore: diff: %w", err)
	}
	return text, nil
}

// ContentAt returns the document content recorded at hash. Returns
// [ErrHashNotFound] if no commit with that hash exists for recordingID.
func (s *Store) ContentAt(ctx context.Context, recordingID, hash string) (string, error) {
	const q = `SELECT content FROM commits WHERE recording_id = $1 AND hash = $2`

	var content string
	err := s.pool.QueryRow(ctx, q, recordingID, hash).Scan(&content)
	if err == pgx.ErrNoRows {
		return "", fmt.Errorf("historystore: content at %q: %w", hash, ErrHashNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("historystore: content at %q: %w", hash, err)
	}
	return content, nil
}

// PrecedingHEAD returns the hash of the commit immediately before
// recordingID's most recent commit — the UNDO agent's fallback target when
// the model fails to name a specific hash. Returns [ErrHashNotFound] if there
// are fewer than two commits.
func (s *Store) PrecedingHEAD(ctx context.Context, recordingID string) (string, error) {
	entries, err := s.RecentEntries(ctx, recordingID, 2)
	if err != nil {
		return "", err
	}
	if len(entries) < 2 {
		return "", fmt.Errorf("historystore: preceding HEAD: %w", ErrHashNotFound)
	}
	return entries[1].Hash, nil
}

// DeleteRecording removes every commit recorded for recordingID.
func (s *Store) DeleteRecording(ctx context.Context, recordingID string) error {
	const q = `DELETE FROM commits WHERE recording_id = $1`
	if _, err := s.pool.Exec(ctx, q, recordingID); err != nil {
		return fmt.Errorf("historystore: delete recording: %w", err)
	}
	return nil
}

// ErrHashNotFound is returned when a commit hash does not exist for the
// queried recording.
var ErrHashNotFound = fmt.Errorf("commit hash not found")

// commitHash derives a stable, content-addressed identifier for a commit.
func commitHash(recordingID, content string, at time.Time) string {
	sum := sha256.Sum256([]byte(recordingID + "\x00" + content + "\x00" + at.Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:12]
}
