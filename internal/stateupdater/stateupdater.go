// Package stateupdater runs the three post-edit maintenance passes that
// follow any successful document-changing agent (SPEC_FULL.md §4.8): focus
// refresh, todo maintenance, and commit. All three are fire-and-forget
// relative to the turn that triggered them — the next turn may start before
// they finish — but the commit pass is serialised per recording so two
// concurrent commits for the same recording never race on the commit ring or
// the history log.
package stateupdater

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/liveink/liveink/internal/config"
	"github.com/liveink/liveink/internal/eventbus"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/internal/historystore"
	"github.com/liveink/liveink/internal/statestore"
	"github.com/liveink/liveink/pkg/provider/llm"
	"github.com/liveink/liveink/pkg/types"
)

const (
	maxFocusChars     = 100
	maxActiveTodos    = 10
	maxCommitMessage  = 72
	fallbackCommitMsg = "Document updated"
)

// Updater owns the shared services the maintenance passes write to.
type Updater struct {
	State   *statestore.Store
	History *historystore.Store
	Flash   llm.Provider
	Events  *eventbus.Bus
	Cfg     config.PipelineConfig

	mu          sync.Mutex
	commitLocks map[string]*sync.Mutex
}

// New creates an Updater. flash is the lightweight LLM used for focus
// summarisation, todo maintenance, and commit-message generation.
func New(state *statestore.Store, history *historystore.Store, flash llm.Provider, bus *eventbus.Bus, cfg config.PipelineConfig) *Updater {
	return &Updater{
		State:       state,
		History:     history,
		Flash:       flash,
		Events:      bus,
		Cfg:         cfg,
		commitLocks: make(map[string]*sync.Mutex),
	}
}

// Run launches all three maintenance passes for recordingID against content
// (the document as of the edit that just completed) and turn (the user's
// spoken text that drove it). Each pass runs in its own goroutine; Run
// returns immediately without waiting for any of them.
func (u *Updater) Run(ctx context.Context, recordingID, content, turn string) {
	if recordingID == "" {
		return
	}
	go u.refreshFocus(ctx, recordingID, content)
	go u.maintainTodos(ctx, recordingID, content, turn)
	go u.commit(ctx, recordingID, content)
}

func (u *Updater) refreshFocus(ctx context.Context, recordingID, content string) {
	resp, err := u.Flash.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: focusPrompt(content)}},
	})
	if err != nil {
		slog.Warn("stateupdater: focus generation failed", "recording_id", recordingID, "err", err)
		return
	}
	focus := strings.TrimSpace(resp.Content)
	if len(focus) > maxFocusChars {
		focus = focus[:maxFocusChars]
	}
	if err := u.State.SetFocus(ctx, recordingID, focus); err != nil {
		slog.Warn("stateupdater: persist focus failed", "recording_id", recordingID, "err", err)
	}
}

func (u *Updater) maintainTodos(ctx context.Context, recordingID, content, turn string) {
	state, err := u.State.GetDocumentState(ctx, recordingID)
	if err != nil {
		slog.Warn("stateupdater: load document state failed", "recording_id", recordingID, "err", err)
		return
	}
	if strings.TrimSpace(content) == "" && len(state.Todos) == 0 {
		return
	}

	active := 0
	for _, t := range state.Todos {
		if !t.Completed {
			active++
		}
	}
	if active > maxActiveTodos {
		slog.Warn("stateupdater: todo list over cap, requesting aggressive cleanup", "recording_id", recordingID, "count", active)
	}

	timeout := u.Cfg.TodoMaintenanceTimeout
	if timeout <= 0 {
		timeout = config.DefaultPipelineConfig().TodoMaintenanceTimeout
	}
	todoCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := u.Flash.Complete(todoCtx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: todoMaintenancePrompt(content, state.Todos, turn, state.Focus)}},
	})
	if err != nil {
		slog.Warn("stateupdater: todo agent failed", "recording_id", recordingID, "err", err)
		return
	}

	ops, err := parseTodoOperations(resp.Content)
	if err != nil {
		slog.Warn("stateupdater: todo agent returned unparseable response", "recording_id", recordingID, "err", err)
		return
	}
	if len(ops) == 0 {
		return
	}

	todos := applyTodoOperations(state.Todos, ops)

	if err := u.State.SetTodos(ctx, recordingID, todos); err != nil {
		slog.Warn("stateupdater: persist todos failed", "recording_id", recordingID, "err", err)
		return
	}

	if u.Events != nil {
		u.Events.Publish(events.TodoUpdate{Todos: toEventTodos(todos)})
	}
}

func (u *Updater) commit(ctx context.Context, recordingID, content string) {
	lock := u.lockFor(recordingID)
	lock.Lock()
	defer lock.Unlock()

	diff, err := u.History.Diff(ctx, recordingID, content)
	if err != nil {
		slog.Warn("stateupdater: compute diff failed", "recording_id", recordingID, "err", err)
	}

	var previousMessage string
	if previous, err := u.History.RecentMessages(ctx, recordingID, 1); err == nil && len(previous) > 0 {
		previousMessage = previous[0]
	}

	message := fallbackCommitMsg
	if generated, err := u.generateCommitMessage(ctx, diff, content, previousMessage); err == nil && generated != "" {
		message = generated
	}

	if _, err := u.History.Commit(ctx, recordingID, message, content); err != nil {
		slog.Error("stateupdater: commit failed", "recording_id", recordingID, "err", err)
		return
	}
	if _, err := u.State.PushCommitMessage(ctx, recordingID, message); err != nil {
		slog.Warn("stateupdater: persist commit ring failed", "recording_id", recordingID, "err", err)
	}
}

func (u *Updater) generateCommitMessage(ctx context.Context, diff, content, previousMessage string) (string, error) {
	resp, err := u.Flash.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: commitMessagePrompt(diff, content, previousMessage)}},
	})
	if err != nil {
		return "", err
	}
	msg := strings.TrimSpace(resp.Content)
	msg = strings.Trim(msg, "\"")
	if len(msg) > maxCommitMessage {
		msg = msg[:maxCommitMessage]
	}
	return msg, nil
}

func (u *Updater) lockFor(recordingID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.commitLocks[recordingID]
	if !ok {
		l = &sync.Mutex{}
		u.commitLocks[recordingID] = l
	}
	return l
}

// rawTodoOperation is the wire shape the todo-maintenance LLM call is
// instructed to return: a flat JSON object carrying only the fields relevant
// to its Action.
type rawTodoOperation struct {
	Action  string `json:"action"`
	TodoID  string `json:"todo_id,omitempty"`
	NewDesc string `json:"new_desc,omitempty"`
	Desc    string `json:"desc,omitempty"`
}

type rawTodoOperations struct {
	Operations []rawTodoOperation `json:"operations"`
}

func parseTodoOperations(response string) ([]rawTodoOperation, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, nil
	}

	var parsed rawTodoOperations
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("stateupdater: parse todo operations: %w", err)
	}
	return parsed.Operations, nil
}

// applyTodoOperations applies ops to todos in order, then drops any todo
// marked completed — completion is a removal signal, not a persisted state.
func applyTodoOperations(todos []statestore.Todo, ops []rawTodoOperation) []statestore.Todo {
	result := append([]statestore.Todo(nil), todos...)

	indexOf := func(id string) int {
		for i, t := range result {
			if t.ID == id {
				return i
			}
		}
		return -1
	}

	for _, op := range ops {
		switch op.Action {
		case "complete":
			if i := indexOf(op.TodoID); i >= 0 {
				result[i].Completed = true
			}
		case "update":
			if i := indexOf(op.TodoID); i >= 0 {
				result[i].Description = op.NewDesc
			}
		case "delete":
			if i := indexOf(op.TodoID); i >= 0 {
				result = append(result[:i], result[i+1:]...)
			}
		case "add":
			result = append(result, statestore.Todo{ID: uuid.NewString(), Description: op.Desc})
		}
	}

	kept := result[:0]
	for _, t := range result {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	return kept
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
