package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/config"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/pkg/provider/llm"
	"github.com/liveink/liveink/pkg/types"
)

// RetrieveAgent gathers relevant past turns and ingested-document chunks for
// the current turn, grounded on rag_agent.rs. It degrades gracefully on any
// failure — a slow or failing retrieval pass must never block a turn, so
// every error path here returns "" rather than propagating up.
type RetrieveAgent struct{}

func (RetrieveAgent) Name() string { return "retrieve" }

func (a RetrieveAgent) Execute(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) error {
	bb.RetrievedContext = a.gather(ctx, deps, bb)
	return nil
}

func (RetrieveAgent) gather(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) string {
	if !bb.NeedRetrieval {
		slog.Debug("retrieve agent: skipped, not needed for this turn")
		return ""
	}
	if bb.RecordingID == "" {
		slog.Warn("retrieve agent: no active recording")
		return ""
	}
	if deps.Retrieval == nil || deps.Embeddings == nil {
		return ""
	}

	queryTimeout := deps.Cfg.QueryGenTimeout
	if queryTimeout <= 0 {
		queryTimeout = config.DefaultPipelineConfig().QueryGenTimeout
	}
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	preview := ""
	if deps.Doc != nil {
		if r := []rune(deps.Doc.Snapshot().Content); len(r) > queryPreviewChars {
			preview = string(r[:queryPreviewChars])
		} else {
			preview = string(r)
		}
	}

	query := bb.Turn
	resp, err := deps.Flash.Complete(queryCtx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: retrievalQueryPrompt(bb.Turn, preview)}},
	})
	if err != nil {
		slog.Warn("retrieve agent: query generation failed or timed out, using the turn as the query", "error", err)
	} else if q := strings.TrimSpace(resp.Content); q != "" {
		query = q
	}

	retrievalTimeout := deps.Cfg.RetrievalTimeout
	if retrievalTimeout <= 0 {
		retrievalTimeout = config.DefaultPipelineConfig().RetrievalTimeout
	}
	searchCtx, cancel2 := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel2()

	embedding, err := deps.Embeddings.Embed(searchCtx, query)
	if err != nil {
		slog.Warn("retrieve agent: embedding failed or timed out", "error", err)
		publish(deps, events.ShowToast{Message: "Retrieval failed; continuing without history context", Type: events.ToastWarning})
		return ""
	}

	results, err := deps.Retrieval.Search(searchCtx, bb.RecordingID, embedding)
	if err != nil {
		slog.Warn("retrieve agent: search failed or timed out", "error", err)
		publish(deps, events.ShowToast{Message: "Retrieval failed; continuing without history context", Type: events.ToastWarning})
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, r.Source, r.Content)
	}
	return b.String()
}

// queryPreviewChars bounds the document preview sent with the query-generation
// prompt.
const queryPreviewChars = 500

func retrievalQueryPrompt(turn, preview string) string {
	return fmt.Sprintf(`Turn the following dictated speech into a short search query (at most 12
words) capturing what information would be useful to retrieve from this
document's history to act on it. Respond with only the query.

Document preview:
%s

Speech:
%s`, preview, turn)
}
