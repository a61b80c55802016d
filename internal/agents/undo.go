package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/pkg/provider/llm"
	"github.com/liveink/liveink/pkg/types"
)

// UndoAgent rolls the document back to a prior commit, grounded on
// undo_agent.rs. The model is asked to name a commit hash; if it fails or
// returns something unusable, the agent falls back to the commit
// immediately preceding the current HEAD.
type UndoAgent struct{}

func (UndoAgent) Name() string { return "undo" }

const undoHistoryLimit = 10

func (UndoAgent) Execute(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) error {
	if bb.RecordingID == "" {
		publish(deps, events.ShowToast{Message: "Undo: no active recording", Type: events.ToastWarning})
		return nil
	}

	entries, err := deps.History.RecentEntries(ctx, bb.RecordingID, undoHistoryLimit)
	if err != nil {
		return fmt.Errorf("undo agent: load history: %w", err)
	}
	if len(entries) < 2 {
		publish(deps, events.ShowToast{Message: "Not enough history to undo", Type: events.ToastWarning})
		return nil
	}

	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, e.Hash, e.Message)
	}

	resp, err := deps.Flash.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: undoPrompt(b.String(), bb.CurrentInstruction())}},
	})

	target := ""
	if err == nil {
		target = firstToken(resp.Content)
	}
	if target == "" {
		target, err = deps.History.PrecedingHEAD(ctx, bb.RecordingID)
		if err != nil {
			publish(deps, events.ShowToast{Message: "Undo: rollback failed", Type: events.ToastError})
			return fmt.Errorf("undo agent: preceding head: %w", err)
		}
	}

	restored, err := deps.History.ContentAt(ctx, bb.RecordingID, target)
	if err != nil {
		// The model may have returned a hash that names no stored commit; fall
		// back to the safe preceding-HEAD target rather than failing the turn
		// outright.
		target, err = deps.History.PrecedingHEAD(ctx, bb.RecordingID)
		if err != nil {
			publish(deps, events.ShowToast{Message: "Undo: rollback failed", Type: events.ToastError})
			return fmt.Errorf("undo agent: rollback failed: %w", err)
		}
		restored, err = deps.History.ContentAt(ctx, bb.RecordingID, target)
		if err != nil {
			publish(deps, events.ShowToast{Message: "Undo: rollback failed", Type: events.ToastError})
			return fmt.Errorf("undo agent: rollback failed: %w", err)
		}
	}

	s := deps.Doc.Reset(restored)
	publish(deps, events.DocumentUpdate{Content: s.Content, Version: s.Version})
	publish(deps, events.ShowToast{Message: "Rolled back to a previous version", Type: events.ToastSuccess})
	triggerUpdate(ctx, deps, bb, s.Content)
	bb.PushHistory(bb.Turn, fmt.Sprintf("ACTION: UNDO (to %s)", target))
	return nil
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
