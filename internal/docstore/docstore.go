// Package docstore holds the in-memory, mutex-protected buffer for a single
// live document: its current text and a monotonically increasing version
// counter bumped on every mutation.
//
// Mutations arrive from several places: the APPEND agent streaming raw chunks
// directly onto the end of the buffer, the EDIT agent applying SEARCH/REPLACE
// patches via [internal/diffengine], and the GREP and UNDO agents replacing
// the whole content with Reset. All paths funnel through Store so version
// numbers stay consistent regardless of which agent wrote.
package docstore

import (
	"sync"

	"github.com/liveink/liveink/internal/diffengine"
)

// Snapshot is a point-in-time, immutable copy of a document's state.
type Snapshot struct {
	Content string
	Version uint64
}

// Store is a versioned, concurrency-safe document buffer.
type Store struct {
	mu      sync.Mutex
	content string
	version uint64
}

// New creates a Store seeded with initialContent at version 0.
func New(initialContent string) *Store {
	return &Store{content: initialContent}
}

// Snapshot returns a copy of the current document state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Content: s.content, Version: s.version}
}

// Reset replaces the document's content outright (used by CLEAR) and bumps
// the version.
func (s *Store) Reset(newContent string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = newContent
	s.version++
	return Snapshot{Content: s.content, Version: s.version}
}

// Append appends chunk to the document's content and bumps the version. Used
// by the streaming APPEND agent.
func (s *Store) Append(chunk string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content += chunk
	s.version++
	return Snapshot{Content: s.content, Version: s.version}
}

// EnsureNewlines pads the document's content so it ends with at least count
// newlines. No-op on an empty document or one that already satisfies count.
func (s *Store) EnsureNewlines(count int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.content == "" {
		return Snapshot{Content: s.content, Version: s.version}
	}

	existing := 0
	for i := len(s.content) - 1; i >= 0 && s.content[i] == '\n'; i-- {
		existing++
	}
	if existing < count {
		for i := existing; i < count; i++ {
			s.content += "\n"
		}
		s.version++
	}
	return Snapshot{Content: s.content, Version: s.version}
}

// ApplyPatches parses every complete SEARCH/REPLACE block out of chunk and
// applies them in order against the current content. It returns the updated
// snapshot and true if at least one patch was applied, or an error from the
// first patch that failed to locate its search text — patches before the
// failure remain applied; patches after it are not attempted.
func (s *Store) ApplyPatches(chunk string) (Snapshot, bool, error) {
	patches := diffengine.ParseAll(chunk)
	if len(patches) == 0 {
		s.mu.Lock()
		snap := Snapshot{Content: s.content, Version: s.version}
		s.mu.Unlock()
		return snap, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := false
	for _, patch := range patches {
		newContent, err := diffengine.Apply(s.content, patch)
		if err != nil {
			return Snapshot{Content: s.content, Version: s.version}, updated, err
		}
		s.content = newContent
		s.version++
		updated = true
	}
	return Snapshot{Content: s.content, Version: s.version}, updated, nil
}
