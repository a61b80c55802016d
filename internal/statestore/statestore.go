// Package statestore persists the scheduler's small pieces of durable state:
// which recording is active, and each recording's todo list, focus sentence,
// and commit-message ring. It is the Postgres-backed analogue of the
// teacher's L1 session store, generalised from a transcript log to a single
// current-pointer-plus-document-state shape.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordingStatus mirrors the scheduler's session state machine
// (Idle → Recording → Paused → Recording → Idle).
type RecordingStatus string

const (
	StatusIdle      RecordingStatus = "idle"
	StatusRecording RecordingStatus = "recording"
	StatusPaused    RecordingStatus = "paused"
)

// commitRingCap is the maximum number of commit messages retained per
// recording; the oldest entry is dropped once the ring is full.
const commitRingCap = 10

// todoCap is the maximum number of active (non-completed) todos retained per
// recording.
const todoCap = 10

// ActiveRecording reports which recording, if any, is currently accepting
// turns, and whether it is actively recording or paused.
type ActiveRecording struct {
	ID     string
	Status RecordingStatus
}

// Todo is a single actionable item tracked against a recording's document.
type Todo struct {
	ID                string  `json:"id"`
	Description       string  `json:"description"`
	Completed         bool    `json:"completed"`
	CompletedTurnsAgo *uint32 `json:"completed_turns_ago,omitempty"`
}

// DocumentState is the durable, per-recording state outside the document
// text itself.
type DocumentState struct {
	RecordingID string
	Todos       []Todo
	Focus       string
	CommitRing  []string // newest-first
}

// Store is a PostgreSQL-backed implementation of the active-recording
// pointer and per-recording document state.
//
// All methods are safe for concurrent use; the underlying pool serialises
// access the same way the teacher's memory store does.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-migrated connection pool. Use [storage.NewPool] to
// obtain one.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetActiveRecording returns the current active-recording pointer. A fresh
// database (no row yet) reports StatusIdle with an empty ID.
func (s *Store) GetActiveRecording(ctx context.Context) (ActiveRecording, error) {
	const q = `SELECT recording_id, status FROM active_recording WHERE id = 1`

	var ar ActiveRecording
	var status string
	err := s.pool.QueryRow(ctx, q).Scan(&ar.ID, &status)
	if err == pgx.ErrNoRows {
		return ActiveRecording{Status: StatusIdle}, nil
	}
	if err != nil {
		return ActiveRecording{}, fmt.Errorf("statestore: get active recording: %w", err)
	}
	ar.Status = RecordingStatus(status)
	return ar, nil
}

// SetActiveRecording upserts the active-recording pointer.
func (s *Store) SetActiveRecording(ctx context.Context, id string, status RecordingStatus) error {
	const q = `
		INSERT INTO active_recording (id, recording_id, status)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
		    recording_id = EXCLUDED.recording_id,
		    status       = EXCLUDED.status`

	if _, err := s.pool.Exec(ctx, q, id, string(status)); err != nil {
		return fmt.Errorf("statestore: set active recording: %w", err)
	}
	return nil
}

// ClearActiveRecording resets the pointer to Idle with no active recording,
// used when a recording is stopped or deleted.
func (s *Store) ClearActiveRecording(ctx context.Context) error {
	return s.SetActiveRecording(ctx, "", StatusIdle)
}

// GetDocumentState returns the durable state for recordingID. A recording
// with no row yet returns a zero-value DocumentState (empty todos, empty
// focus, empty commit ring) rather than an error.
func (s *Store) GetDocumentState(ctx context.Context, recordingID string) (DocumentState, error) {
	const q = `SELECT todos, focus, commit_ring FROM document_states WHERE recording_id = $1`

	var todosJSON, ringJSON []byte
	var focus string
	err := s.pool.QueryRow(ctx, q, recordingID).Scan(&todosJSON, &focus, &ringJSON)
	if err == pgx.ErrNoRows {
		return DocumentState{RecordingID: recordingID}, nil
	}
	if err != nil {
		return DocumentState{}, fmt.Errorf("statestore: get document state: %w", err)
	}

	ds := DocumentState{RecordingID: recordingID, Focus: focus}
	if err := json.Unmarshal(todosJSON, &ds.Todos); err != nil {
		return DocumentState{}, fmt.Errorf("statestore: decode todos: %w", err)
	}
	if err := json.Unmarshal(ringJSON, &ds.CommitRing); err != nil {
		return DocumentState{}, fmt.Errorf("statestore: decode commit ring: %w", err)
	}
	return ds, nil
}

// SetTodos overwrites recordingID's todo list, truncating to [todoCap] active
// (non-completed) items if the caller exceeds it — the maintenance agent is
// expected to prevent this, but the store enforces it as a backstop.
func (s *Store) SetTodos(ctx context.Context, recordingID string, todos []Todo) error {
	todos = enforceTodoCap(todos)
	data, err := json.Marshal(todos)
	if err != nil {
		return fmt.Errorf("statestore: encode todos: %w", err)
	}
	return s.upsertDocumentState(ctx, recordingID, "todos", data)
}

// SetFocus overwrites recordingID's focus sentence.
func (s *Store) SetFocus(ctx context.Context, recordingID, focus string) error {
	return s.upsertDocumentState(ctx, recordingID, "focus", focus)
}

// PushCommitMessage prepends message onto recordingID's commit-message ring,
// retaining at most [commitRingCap] entries, and returns the resulting ring.
func (s *Store) PushCommitMessage(ctx context.Context, recordingID, message string) ([]string, error) {
	ds, err := s.GetDocumentState(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	ring := append([]string{message}, ds.CommitRing...)
	if len(ring) > commitRingCap {
		ring = ring[:commitRingCap]
	}

	data, err := json.Marshal(ring)
	if err != nil {
		return nil, fmt.Errorf("statestore: encode commit ring: %w", err)
	}
	if err := s.upsertDocumentState(ctx, recordingID, "commit_ring", data); err != nil {
		return nil, err
	}
	return ring, nil
}

// DeleteRecordingState removes all durable state for recordingID, used by
// DeleteRecording and ResetDocument.
func (s *Store) DeleteRecordingState(ctx context.Context, recordingID string) error {
	const q = `DELETE FROM document_states WHERE recording_id = $1`
	if _, err := s.pool.Exec(ctx, q, recordingID); err != nil {
		return fmt.Errorf("statestore: delete recording state: %w", err)
	}
	return nil
}

// upsertDocumentState updates a single column of the document_states row for
// recordingID, creating the row with defaults for the other columns if it
// does not yet exist.
func (s *Store) upsertDocumentState(ctx context.Context, recordingID, column string, value any) error {
	q := fmt.Sprintf(`
		INSERT INTO document_states (recording_id, %[1]s, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (recording_id) DO UPDATE SET
		    %[1]s      = EXCLUDED.%[1]s,
		    updated_at = EXCLUDED.updated_at`, column)

	if _, err := s.pool.Exec(ctx, q, recordingID, value); err != nil {
		return fmt.Errorf("statestore: update %s: %w", column, err)
	}
	return nil
}

// enforceTodoCap keeps all completed todos (they are pruned elsewhere) but
// truncates active todos to todoCap, preferring to keep the earliest-added
// items.
func enforceTodoCap(todos []Todo) []Todo {
	active := 0
	out := make([]Todo, 0, len(todos))
	for _, t := range todos {
		if t.Completed {
			out = append(out, t)
			continue
		}
		if active >= todoCap {
			continue
		}
		out = append(out, t)
		active++
	}
	return out
}
