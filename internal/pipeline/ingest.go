package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/internal/retrieval"
)

// ingestChunkChars bounds how much text a single ingested resource chunk
// carries, matching the retrieval store's embed-and-search granularity for
// turns (one utterance per chunk).
const ingestChunkChars = 1500

// storeTurnForRetrieval embeds turn and upserts it into recordingID's
// retrieval table, fire-and-forget relative to the turn that triggered it —
// grounded on transcript_processor.rs step 0, which spawns this as an
// independent task rather than awaiting it inline.
func (s *Scheduler) storeTurnForRetrieval(recordingID, turn string) {
	if s.deps.Embeddings == nil || s.deps.Retrieval == nil {
		return
	}
	ctx := context.Background()

	vec, err := s.deps.Embeddings.Embed(ctx, turn)
	if err != nil {
		s.publish(events.ShowToast{Message: fmt.Sprintf("Failed to store conversation in memory: %v", err), Type: events.ToastWarning})
		return
	}

	chunk := retrieval.Chunk{ID: uuid.NewString(), Content: turn, Embedding: vec}
	if err := s.deps.Retrieval.IngestTurn(ctx, recordingID, chunk); err != nil {
		s.publish(events.ShowToast{Message: fmt.Sprintf("Failed to store conversation in memory: %v", err), Type: events.ToastWarning})
	}
}

// ingestDocument embeds and stores an externally supplied document's content
// under the active recording, chunked into ingestChunkChars-sized pieces.
func (s *Scheduler) ingestDocument(filename, content string) {
	if s.recordingID == "" {
		s.publish(events.ShowToast{Message: "Cannot ingest document: no active recording session", Type: events.ToastWarning})
		return
	}
	if s.deps.Embeddings == nil || s.deps.Retrieval == nil {
		s.publish(events.ShowToast{Message: "Ingestion unavailable: retrieval is not configured", Type: events.ToastWarning})
		return
	}

	recordingID := s.recordingID
	go func() {
		ctx := context.Background()
		for i, piece := range chunkDocument(content, ingestChunkChars) {
			vec, err := s.deps.Embeddings.Embed(ctx, piece)
			if err != nil {
				s.publish(events.ShowToast{Message: fmt.Sprintf("Document ingestion failed (%s): %v", filename, err), Type: events.ToastError})
				return
			}
			chunk := retrieval.Chunk{
				ID:        fmt.Sprintf("%s:%d", filename, i),
				Content:   piece,
				Embedding: vec,
				Filename:  filename,
			}
			if err := s.deps.Retrieval.IngestResource(ctx, recordingID, chunk); err != nil {
				s.publish(events.ShowToast{Message: fmt.Sprintf("Document ingestion failed (%s): %v", filename, err), Type: events.ToastError})
				return
			}
		}
		s.publish(events.ShowToast{Message: fmt.Sprintf("Document '%s' ingested successfully", filename), Type: events.ToastSuccess})
	}()
}

// chunkDocument splits content into paragraph-aligned pieces no larger than
// maxChars. A single paragraph that itself exceeds maxChars is split at the
// bound rather than left oversized.
func chunkDocument(content string, maxChars int) []string {
	paragraphs := strings.Split(strings.TrimSpace(content), "\n\n")

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) > maxChars {
			flush()
			for len(p) > maxChars {
				chunks = append(chunks, p[:maxChars])
				p = p[maxChars:]
			}
			if p != "" {
				chunks = append(chunks, p)
			}
			continue
		}
		if current.Len()+len(p)+2 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()
	return chunks
}
