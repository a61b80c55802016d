package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liveink/liveink/internal/agents"
	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/commands"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/internal/router"
	"github.com/liveink/liveink/internal/statestore"
	"github.com/liveink/liveink/internal/turnagg"
)

// handleCommand dispatches a single inbound command to its handler.
func (s *Scheduler) handleCommand(ctx context.Context, cmd commands.Command) {
	switch c := cmd.(type) {
	case commands.StartRecording:
		s.activateRecording(ctx, c.ID)
	case commands.LoadRecording:
		s.activateRecording(ctx, c.ID)
	case commands.PauseRecording:
		s.pauseRecording(ctx)
	case commands.ResumeRecording:
		s.resumeRecording(ctx)
	case commands.StopRecording:
		s.stopRecording(ctx)
	case commands.ResetDocument:
		s.resetDocument(ctx)
	case commands.UpdateDocument:
		s.updateDocument(ctx, c.Content)
	case commands.IngestDocument:
		s.ingestDocument(c.Filename, c.Content)
	case commands.RollbackToCommit:
		s.rollbackToCommit(ctx, c.Hash)
	case commands.UndoLastChange:
		s.undoLastChange(ctx)
	case commands.DeleteRecording:
		s.deleteRecording(ctx, c.ID)
	case commands.AddTodo:
		s.addTodo(ctx, c.Description)
	case commands.UpdateTodo:
		s.updateTodo(ctx, c.ID, c.Description)
	case commands.ToggleTodo:
		s.toggleTodo(ctx, c.ID)
	case commands.DeleteTodo:
		s.deleteTodo(ctx, c.ID)
	default:
		slog.Warn("pipeline: unknown command", "type", fmt.Sprintf("%T", cmd))
	}
}

// activateRecording switches the active recording to id, loading its most
// recent committed content (if any) as the document's starting state. It
// backs both StartRecording and LoadRecording: the original treats a fresh
// recording id and a previously recorded one identically, since the
// document's content is simply whatever history holds (empty for a truly new
// id).
//
// If a Workspace was configured (SPEC_FULL.md §7 "Workspace missing"), the
// current workspace must still exist on disk or the command is rejected with
// an error toast rather than proceeding against a workspace that was moved
// or deleted out from under the running process.
func (s *Scheduler) activateRecording(ctx context.Context, id string) {
	if s.workspace != nil {
		ok, err := s.workspace.Exists(ctx)
		if err != nil {
			slog.Warn("pipeline: workspace existence check failed", "recording_id", id, "error", err)
		}
		if err == nil && !ok {
			s.publish(events.ShowToast{Message: "workspace not found", Type: events.ToastError})
			return
		}
	}

	s.cancelCurrentTurn()
	s.agg = turnagg.New(s.cfg)
	s.chatHistory = nil
	s.recordingID = id
	s.recordingName = id
	s.previousAutoName = ""
	s.status = statestore.StatusRecording

	content := ""
	if s.deps.History != nil {
		if entries, err := s.deps.History.RecentEntries(ctx, id, 1); err != nil {
			slog.Warn("pipeline: load recording content failed", "recording_id", id, "error", err)
		} else if len(entries) > 0 {
			content = entries[0].Content
		}
	}

	snap := s.deps.Doc.Reset(content)
	s.publish(events.DocumentUpdate{Content: snap.Content, Version: snap.Version})
	s.publish(events.RecordingStarted{ID: id})

	if s.deps.State != nil {
		if err := s.deps.State.SetActiveRecording(ctx, id, statestore.StatusRecording); err != nil {
			slog.Warn("pipeline: persist active recording failed", "recording_id", id, "error", err)
		}
	}
}

func (s *Scheduler) pauseRecording(ctx context.Context) {
	s.cancelCurrentTurn()
	if s.recordingID == "" {
		return
	}
	s.status = statestore.StatusPaused
	if s.deps.State != nil {
		if err := s.deps.State.SetActiveRecording(ctx, s.recordingID, statestore.StatusPaused); err != nil {
			slog.Warn("pipeline: persist paused status failed", "error", err)
		}
	}
}

func (s *Scheduler) resumeRecording(ctx context.Context) {
	if s.recordingID == "" {
		return
	}
	s.status = statestore.StatusRecording
	if s.deps.State != nil {
		if err := s.deps.State.SetActiveRecording(ctx, s.recordingID, statestore.StatusRecording); err != nil {
			slog.Warn("pipeline: persist resumed status failed", "error", err)
		}
	}
}

func (s *Scheduler) stopRecording(ctx context.Context) {
	s.cancelCurrentTurn()
	id := s.recordingID
	s.status = statestore.StatusIdle
	s.recordingID = ""
	s.agg = turnagg.New(s.cfg)

	if id == "" {
		return
	}
	if s.deps.State != nil {
		if err := s.deps.State.ClearActiveRecording(ctx); err != nil {
			slog.Warn("pipeline: clear active recording failed", "recording_id", id, "error", err)
		}
	}
}

// resetDocument clears the document and, if a recording is active, wipes
// that recording's durable state, history, and retrieval tables — a hard
// reset, not merely reverting to an earlier version.
func (s *Scheduler) resetDocument(ctx context.Context) {
	s.cancelCurrentTurn()
	id := s.recordingID
	s.chatHistory = nil

	snap := s.deps.Doc.Reset("")
	s.publish(events.DocumentUpdate{Content: snap.Content, Version: snap.Version})

	if id == "" {
		return
	}

	slog.Warn("pipeline: hard reset clearing recording data", "recording_id", id)

	if s.deps.Retrieval != nil {
		go func() {
			if err := s.deps.Retrieval.DeleteRecording(context.Background(), id); err != nil {
				slog.Error("pipeline: delete retrieval tables on reset failed", "recording_id", id, "error", err)
			}
		}()
	}
	if s.deps.History != nil {
		go func() {
			if err := s.deps.History.DeleteRecording(context.Background(), id); err != nil {
				slog.Error("pipeline: delete history on reset failed", "recording_id", id, "error", err)
			}
		}()
	}
	if s.deps.State != nil {
		if err := s.deps.State.DeleteRecordingState(ctx, id); err != nil {
			slog.Warn("pipeline: delete document state on reset failed", "recording_id", id, "error", err)
		}
	}

	s.publish(events.TodoUpdate{Todos: nil})
	s.publish(events.ShowToast{Message: "Document and memory cleared", Type: events.ToastSuccess})
}

// updateDocument applies a manual edit made outside the agent pipeline: the
// document is overwritten directly and the full maintenance pass runs
// against it, same as after an agent-driven change.
func (s *Scheduler) updateDocument(ctx context.Context, content string) {
	snap := s.deps.Doc.Reset(content)
	s.publish(events.DocumentUpdate{Content: snap.Content, Version: snap.Version})

	if s.recordingID == "" || s.deps.Updater == nil {
		return
	}
	s.deps.Updater.Run(ctx, s.recordingID, content, "Manual edit")
}

func (s *Scheduler) rollbackToCommit(ctx context.Context, hash string) {
	if s.recordingID == "" {
		slog.Warn("pipeline: cannot rollback, no active recording")
		return
	}
	if s.deps.History == nil {
		return
	}

	content, err := s.deps.History.ContentAt(ctx, s.recordingID, hash)
	if err != nil {
		s.publish(events.ShowToast{Message: fmt.Sprintf("Rollback failed: %v", err), Type: events.ToastError})
		return
	}

	s.cancelCurrentTurn()
	snap := s.deps.Doc.Reset(content)
	s.publish(events.DocumentUpdate{Content: snap.Content, Version: snap.Version})
	s.publish(events.ShowToast{Message: "Rollback successful", Type: events.ToastSuccess})
}

// undoLastChange runs the UNDO agent outside of a turn's plan, for the
// shell's dedicated undo affordance rather than a spoken "undo that".
func (s *Scheduler) undoLastChange(ctx context.Context) {
	if s.recordingID == "" {
		slog.Warn("pipeline: cannot undo, no active recording")
		return
	}
	s.cancelCurrentTurn()

	bb := blackboard.New("Undo the last change", s.recordingID, nil, false, router.ToolIntent{}, s.chatHistory)
	if err := (agents.UndoAgent{}).Execute(ctx, s.deps, bb); err != nil {
		slog.Error("pipeline: undo failed", "recording_id", s.recordingID, "error", err)
		return
	}
	s.chatHistory = bb.ChatHistory
}

func (s *Scheduler) deleteRecording(ctx context.Context, id string) {
	if s.deps.Retrieval != nil {
		go func() {
			if err := s.deps.Retrieval.DeleteRecording(context.Background(), id); err != nil {
				slog.Error("pipeline: delete retrieval data failed", "recording_id", id, "error", err)
			}
		}()
	}
	if s.deps.History != nil {
		if err := s.deps.History.DeleteRecording(ctx, id); err != nil {
			slog.Error("pipeline: delete history failed", "recording_id", id, "error", err)
		}
	}
	if s.deps.State != nil {
		if err := s.deps.State.DeleteRecordingState(ctx, id); err != nil {
			slog.Warn("pipeline: delete document state failed", "recording_id", id, "error", err)
		}
	}

	if s.recordingID == id {
		s.cancelCurrentTurn()
		s.status = statestore.StatusIdle
		s.recordingID = ""
		s.chatHistory = nil
		snap := s.deps.Doc.Reset("")
		s.publish(events.DocumentUpdate{Content: snap.Content, Version: snap.Version})
	}

	s.publish(events.RecordingsUpdated{})
}
