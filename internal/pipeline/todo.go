package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/internal/statestore"
)

// addTodo, updateTodo, toggleTodo, and deleteTodo are direct statestore CRUD
// operations rather than anything routed through the LLM-mediated todo
// maintenance pass (stateupdater) — a user explicitly editing the todo list
// through the shell's UI is not the same event as the document changing.

func (s *Scheduler) addTodo(ctx context.Context, desc string) {
	if s.recordingID == "" {
		s.publish(events.ShowToast{Message: "No active recording to add todo to", Type: events.ToastWarning})
		return
	}
	s.mutateTodos(ctx, func(todos []statestore.Todo) []statestore.Todo {
		return append(todos, statestore.Todo{ID: uuid.NewString(), Description: desc})
	}, "Todo added")
}

func (s *Scheduler) updateTodo(ctx context.Context, id, description string) {
	s.mutateTodos(ctx, func(todos []statestore.Todo) []statestore.Todo {
		for i := range todos {
			if todos[i].ID == id {
				todos[i].Description = description
			}
		}
		return todos
	}, "Todo updated")
}

func (s *Scheduler) toggleTodo(ctx context.Context, id string) {
	s.mutateTodos(ctx, func(todos []statestore.Todo) []statestore.Todo {
		for i := range todos {
			if todos[i].ID == id {
				todos[i].Completed = !todos[i].Completed
			}
		}
		return todos
	}, "")
}

func (s *Scheduler) deleteTodo(ctx context.Context, id string) {
	s.mutateTodos(ctx, func(todos []statestore.Todo) []statestore.Todo {
		out := todos[:0]
		for _, t := range todos {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out
	}, "Todo deleted")
}

// mutateTodos loads the active recording's current todos, applies mutate,
// persists the result, and broadcasts the updated list. successToast is
// published on success if non-empty.
func (s *Scheduler) mutateTodos(ctx context.Context, mutate func([]statestore.Todo) []statestore.Todo, successToast string) {
	if s.recordingID == "" || s.deps.State == nil {
		return
	}

	ds, err := s.deps.State.GetDocumentState(ctx, s.recordingID)
	if err != nil {
		slog.Warn("pipeline: load document state for todo mutation failed", "recording_id", s.recordingID, "error", err)
		return
	}

	todos := mutate(append([]statestore.Todo(nil), ds.Todos...))

	if err := s.deps.State.SetTodos(ctx, s.recordingID, todos); err != nil {
		s.publish(events.ShowToast{Message: fmt.Sprintf("Failed to update todos: %v", err), Type: events.ToastError})
		return
	}

	s.publish(events.TodoUpdate{Todos: toEventTodos(todos)})
	if successToast != "" {
		s.publish(events.ShowToast{Message: successToast, Type: events.ToastSuccess})
	}
}

func toEventTodos(todos []statestore.Todo) []events.Todo {
	out := make([]events.Todo, len(todos))
	for i, t := range todos {
		out[i] = events.Todo{
			ID:                t.ID,
			Description:       t.Description,
			Completed:         t.Completed,
			CompletedTurnsAgo: t.CompletedTurnsAgo,
		}
	}
	return out
}
