package agents

import (
	"context"
	"log/slog"

	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/statestore"
)

// buildSystemMessage assembles the shared system prompt for one of the
// document-editing agents, pulling the recording's focus, recent commit
// messages, and todo list from the state/history stores when a recording is
// active. Any lookup failure degrades gracefully to an empty value rather
// than aborting the turn — the agent can still act on the document alone.
func buildSystemMessage(ctx context.Context, deps *Deps, bb *blackboard.Blackboard, doc string) string {
	var focus string
	var todos []statestore.Todo
	var commits []string

	if bb.RecordingID != "" {
		if deps.State != nil {
			if ds, err := deps.State.GetDocumentState(ctx, bb.RecordingID); err != nil {
				slog.Warn("agents: load document state", "recording_id", bb.RecordingID, "error", err)
			} else {
				focus = ds.Focus
				todos = ds.Todos
			}
		}
		if deps.History != nil {
			if msgs, err := deps.History.RecentMessages(ctx, bb.RecordingID, 5); err != nil {
				slog.Warn("agents: load recent commits", "recording_id", bb.RecordingID, "error", err)
			} else {
				commits = msgs
			}
		}
	}

	return systemMessage(doc, focus, commits, todos, bb.RetrievedContext, bb.SearchResults)
}
