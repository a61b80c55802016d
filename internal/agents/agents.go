// Package agents implements the ordered, per-turn editing agents that act on
// the blackboard (SPEC_FULL.md §4.4-§4.6): retrieve, search, and the five
// document-editing agents (append, edit, grep, undo, clear), plus a no-op.
// Each is grounded on its counterpart in the original implementation's
// modules/agents tree, translated from the Rust async-trait Agent pattern to
// a Go interface executed synchronously by the pipeline scheduler.
package agents

import (
	"context"
	"fmt"

	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/config"
	"github.com/liveink/liveink/internal/docstore"
	"github.com/liveink/liveink/internal/eventbus"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/internal/historystore"
	"github.com/liveink/liveink/internal/mcp"
	"github.com/liveink/liveink/internal/observe"
	"github.com/liveink/liveink/internal/retrieval"
	"github.com/liveink/liveink/internal/router"
	"github.com/liveink/liveink/internal/statestore"
	"github.com/liveink/liveink/internal/stateupdater"
	"github.com/liveink/liveink/pkg/provider/embeddings"
	"github.com/liveink/liveink/pkg/provider/llm"
)

// Deps bundles the shared, scheduler-owned services every agent may need.
// It is constructed once and handed to every turn's agents; only the
// blackboard is turn-scoped.
type Deps struct {
	Doc        *docstore.Store
	State      *statestore.Store
	History    *historystore.Store
	Retrieval  *retrieval.Store
	Embeddings embeddings.Provider
	Coder      llm.Provider // higher-capability model used for streaming document edits
	Flash      llm.Provider // lightweight model used for classification/summarisation
	Events     *eventbus.Bus
	Updater    *stateupdater.Updater
	MCP        mcp.Host // search agent's tool-call path; may be nil
	Cfg        config.PipelineConfig
	Metrics    *observe.Metrics
}

// Agent executes one step of a turn's plan against the shared services and
// the turn's blackboard.
type Agent interface {
	Name() string
	Execute(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) error
}

// ForIntent returns the editing agent responsible for intent, or nil for
// IntentNoOp (handled inline by the scheduler rather than as an Agent, since
// it only needs to touch chat history, not the document).
func ForIntent(intent router.Intent) Agent {
	switch intent {
	case router.IntentAppend:
		return AppendAgent{}
	case router.IntentEdit:
		return EditAgent{}
	case router.IntentGrep:
		return GrepAgent{}
	case router.IntentUndo:
		return UndoAgent{}
	case router.IntentClear:
		return ClearAgent{}
	default:
		return nil
	}
}

// HandleNoOp implements the scheduler's special-case handling for a
// single-step NO-OP plan: push the turn onto chat history and report the
// pipeline as idle again. A NO-OP that appears alongside other steps in a
// multi-step plan is not routed here at all — it contributes nothing and is
// simply skipped by the plan loop.
func HandleNoOp(deps *Deps, bb *blackboard.Blackboard) {
	bb.PushHistory(bb.Turn, "")
	publish(deps, events.AgentStatus{Status: "idle"})
}

// publish is a nil-safe wrapper so agents don't need to guard deps.Events
// themselves.
func publish(deps *Deps, evt events.Event) {
	if deps.Events != nil {
		deps.Events.Publish(evt)
	}
}

// metricsOf returns deps.Metrics, falling back to the package-level default
// so agents built in tests without an explicit Metrics value still record
// somewhere rather than needing a nil guard at every call site.
func metricsOf(deps *Deps) *observe.Metrics {
	if deps.Metrics != nil {
		return deps.Metrics
	}
	return observe.DefaultMetrics()
}

// triggerUpdate runs the post-edit maintenance passes for the active
// recording. A no-op when no recording is active (manual/preview editing).
func triggerUpdate(ctx context.Context, deps *Deps, bb *blackboard.Blackboard, content string) {
	if deps.Updater == nil {
		return
	}
	deps.Updater.Run(ctx, bb.RecordingID, content, bb.Turn)
}

// streamText runs req against provider, invoking onChunk (if non-nil) with
// each incremental text fragment, and returns the fully assembled response.
// A Chunk with FinishReason "error" surfaces as an error return, mirroring
// how providers signal mid-stream failures per the llm.Provider contract.
func streamText(ctx context.Context, provider llm.Provider, req llm.CompletionRequest, onChunk func(string)) (string, error) {
	stream, err := provider.StreamCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("agents: stream completion: %w", err)
	}

	var buf []byte
	for chunk := range stream {
		if chunk.FinishReason == "error" {
			return string(buf), fmt.Errorf("agents: stream completion: provider reported an error")
		}
		if chunk.Text != "" {
			buf = append(buf, chunk.Text...)
			if onChunk != nil {
				onChunk(chunk.Text)
			}
		}
	}
	return string(buf), nil
}
