package agents

import (
	"context"
	"fmt"

	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/events"
)

// ClearAgent wipes the document and its todo list, grounded on
// clear_agent.rs. Unlike every other editing agent it makes no LLM call at
// all — clearing is an unconditional action, not something that needs
// interpretation.
type ClearAgent struct{}

func (ClearAgent) Name() string { return "clear" }

func (ClearAgent) Execute(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) error {
	s := deps.Doc.Reset("")
	publish(deps, events.DocumentUpdate{Content: s.Content, Version: s.Version})

	if bb.RecordingID != "" && deps.State != nil {
		state, err := deps.State.GetDocumentState(ctx, bb.RecordingID)
		if err != nil {
			return fmt.Errorf("clear agent: load document state: %w", err)
		}
		if len(state.Todos) > 0 {
			if err := deps.State.SetTodos(ctx, bb.RecordingID, nil); err != nil {
				return fmt.Errorf("clear agent: clear todos: %w", err)
			}
			publish(deps, events.TodoUpdate{Todos: nil})
		}
	}

	triggerUpdate(ctx, deps, bb, s.Content)
	bb.PushHistory(bb.Turn, "ACTION: CLEAR")
	return nil
}
