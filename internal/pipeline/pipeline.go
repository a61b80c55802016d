// Package pipeline implements the scheduler that drives the engine's session
// state machine and per-turn orchestration (SPEC_FULL.md §4, §5), grounded on
// the original implementation's run_pipeline/process_transcript loop
// (modules/pipeline/mod.rs, modules/pipeline/transcript_processor.rs). It is
// the single place that owns the active recording, the in-flight
// processing-cancellation handle, and the chat history carried across turns.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/liveink/liveink/internal/agents"
	"github.com/liveink/liveink/internal/autoname"
	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/commands"
	"github.com/liveink/liveink/internal/config"
	"github.com/liveink/liveink/internal/eventbus"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/internal/observe"
	"github.com/liveink/liveink/internal/router"
	"github.com/liveink/liveink/internal/statestore"
	"github.com/liveink/liveink/internal/turnagg"
	"github.com/liveink/liveink/internal/workspace"
	"github.com/liveink/liveink/pkg/types"
)

// Scheduler is a single long-lived cooperative loop multiplexing inbound
// commands, ASR transcript fragments, and the aggregator's deadline timer. It
// is not safe for concurrent use from multiple goroutines other than its own
// Run loop; callers interact with it only through Commands and Fragments.
type Scheduler struct {
	deps      *agents.Deps
	router    *router.Router
	events    *eventbus.Bus
	cfg       config.PipelineConfig
	metrics   *observe.Metrics
	workspace workspace.Workspace

	// Commands carries session-lifecycle and document commands in from an
	// external caller (the desktop shell, in production).
	Commands chan commands.Command

	// Fragments carries incremental ASR transcript text in.
	Fragments chan string

	agg *turnagg.Aggregator

	status      statestore.RecordingStatus
	recordingID string

	// recordingName and previousAutoName track auto-naming eligibility and
	// near-duplicate suppression in memory for the active recording. Display
	// name persistence across restarts belongs to the layer that owns
	// recording metadata outside this package.
	recordingName    string
	previousAutoName string

	chatHistory []types.Message

	cancelTurn context.CancelFunc
	wg         sync.WaitGroup
}

// Option customises Scheduler construction.
type Option func(*Scheduler)

// WithWorkspace configures the workspace existence check activateRecording
// consults before starting or loading a recording. With no Workspace
// configured (the default, and the case for every embedded/in-memory-only
// deployment with no filesystem workspace of its own) the check is skipped
// and every start/load proceeds.
func WithWorkspace(ws workspace.Workspace) Option {
	return func(s *Scheduler) { s.workspace = ws }
}

// New creates a Scheduler backed by deps, rtr, and bus. cfg governs the
// aggregator's timing and the per-turn timeouts/retry limits the agents
// consult through deps.Cfg.
func New(deps *agents.Deps, rtr *router.Router, bus *eventbus.Bus, cfg config.PipelineConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		deps:      deps,
		router:    rtr,
		events:    bus,
		cfg:       cfg,
		metrics:   observe.DefaultMetrics(),
		Commands:  make(chan commands.Command, 32),
		Fragments: make(chan string, 64),
		agg:       turnagg.New(cfg),
		status:    statestore.StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the scheduler until ctx is cancelled or Commands is closed. It
// blocks the caller; run it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.wg.Wait()

	for {
		var fireCh <-chan time.Time
		if deadline, ok := s.agg.NextDeadline(); ok {
			fireCh = time.After(time.Until(deadline))
		}

		select {
		case <-ctx.Done():
			s.cancelCurrentTurn()
			return

		case cmd, ok := <-s.Commands:
			if !ok {
				s.cancelCurrentTurn()
				return
			}
			s.handleCommand(ctx, cmd)

		case frag, ok := <-s.Fragments:
			if !ok {
				continue
			}
			s.handleFragment(ctx, frag)

		case <-fireCh:
			s.fireAggregator(ctx)
		}
	}
}

// handleFragment feeds frag into the aggregator if the session is actively
// recording; fragments arriving while paused or idle are dropped, matching
// the original's ASR-cancellation-token gating.
func (s *Scheduler) handleFragment(ctx context.Context, frag string) {
	s.publish(events.TranscriptUpdate{Text: frag})
	if s.status != statestore.StatusRecording {
		return
	}
	if turns, ready := s.agg.Push(frag); ready {
		for _, turn := range turns {
			s.startTurn(ctx, turn)
		}
	}
}

// fireAggregator checks whether the aggregator's holdback or flush deadline
// has elapsed, starting a turn for whatever falls out if so.
func (s *Scheduler) fireAggregator(ctx context.Context) {
	turns, fired := s.agg.Fire(time.Now())
	if !fired {
		return
	}
	for _, turn := range turns {
		s.startTurn(ctx, turn)
	}
}

// startTurn cancels whatever turn is currently being processed — a new turn
// always supersedes an in-flight one, since later agent steps need to see
// the latest document state — and spawns the new one.
func (s *Scheduler) startTurn(ctx context.Context, turn string) {
	s.cancelCurrentTurn()

	turnCtx, cancel := context.WithCancel(ctx)
	s.cancelTurn = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.processTurn(turnCtx, turn)
	}()
}

// cancelCurrentTurn aborts the in-flight turn-task, if any. Called on pause,
// stop, reset, a recording switch, or a newly arrived turn.
func (s *Scheduler) cancelCurrentTurn() {
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}
}

// publish is a nil-safe wrapper around the event bus, mirroring
// internal/agents' own helper since Scheduler cannot reuse its unexported
// form across the package boundary.
func (s *Scheduler) publish(evt events.Event) {
	if s.events != nil {
		s.events.Publish(evt)
	}
}

// processTurn runs the full per-turn flow (SPEC_FULL.md §4.2-§4.9): fire the
// RAG-storage side effect, normalize tabs, fan the three routers out
// concurrently, gather retrieval/search context concurrently, run the
// editing agents sequentially against a fresh blackboard, then check for an
// auto-naming trigger.
func (s *Scheduler) processTurn(ctx context.Context, turn string) {
	ctx, span := observe.StartSpan(ctx, "pipeline.processTurn")
	defer span.End()

	s.metrics.ActiveTurns.Add(ctx, 1)
	defer s.metrics.ActiveTurns.Add(ctx, -1)

	start := time.Now()
	defer func() {
		s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}()

	s.publish(events.AgentStatus{Status: "thinking"})
	defer s.publish(events.AgentStatus{Status: "idle"})

	recordingID := s.recordingID

	if recordingID != "" {
		go s.storeTurnForRetrieval(recordingID, turn)
	}

	doc := s.normalizeDocumentTabs()

	focus, todos := s.loadFocusAndTodos(ctx, recordingID)
	commits := s.loadRecentCommits(ctx, recordingID)

	routeStart := time.Now()
	result := s.router.Route(ctx, doc, turn, focus, commits, todoSummary(todos))
	s.metrics.RouterDuration.Record(ctx, time.Since(routeStart).Seconds())

	bb := blackboard.New(turn, recordingID, result.Plan, result.NeedRetrieval, result.Tool, s.chatHistory)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := (agents.RetrieveAgent{}).Execute(ctx, s.deps, bb); err != nil {
			slog.Warn("pipeline: retrieve agent failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := (agents.SearchAgent{}).Execute(ctx, s.deps, bb); err != nil {
			slog.Warn("pipeline: search agent failed", "error", err)
		}
	}()
	wg.Wait()

	if bb.SearchResults != "" {
		s.publish(events.SearchResults{Query: turn, Content: bb.SearchResults})
	}

	s.runPlan(ctx, bb)

	s.chatHistory = bb.ChatHistory

	if recordingID != "" {
		s.maybeAutoName(ctx, recordingID, s.deps.Doc.Snapshot().Content)
	}
}

// runPlan executes bb.Plan's steps strictly in order, stopping at the first
// agent error. A plan consisting of a single NO-OP step is handled inline
// rather than dispatched through ForIntent, since it has nothing to act on.
func (s *Scheduler) runPlan(ctx context.Context, bb *blackboard.Blackboard) {
	if len(bb.Plan) == 1 && bb.Plan[0].Intent == router.IntentNoOp {
		agents.HandleNoOp(s.deps, bb)
		return
	}

	for i, step := range bb.Plan {
		if step.Intent == router.IntentNoOp {
			continue
		}
		bb.CurrentStep = i

		agent := agents.ForIntent(step.Intent)
		if agent == nil {
			continue
		}
		s.metrics.RecordAgentInvocation(ctx, string(step.Intent))
		if err := agent.Execute(ctx, s.deps, bb); err != nil {
			slog.Error("pipeline: agent step failed", "agent", agent.Name(), "step", i, "error", err)
			s.publish(events.ShowToast{Message: agent.Name() + ": " + err.Error(), Type: events.ToastError})
			return
		}
	}
}

// normalizeDocumentTabs converts any tabs in the current document to
// four-space indentation before a turn's routers and agents see it, and
// persists/broadcasts the change if it did anything.
func (s *Scheduler) normalizeDocumentTabs() string {
	snap := s.deps.Doc.Snapshot()
	if !containsTab(snap.Content) {
		return snap.Content
	}
	normalized := replaceTabs(snap.Content)
	updated := s.deps.Doc.Reset(normalized)
	s.publish(events.DocumentUpdate{Content: updated.Content, Version: updated.Version})
	return updated.Content
}

func (s *Scheduler) loadFocusAndTodos(ctx context.Context, recordingID string) (string, []statestore.Todo) {
	if recordingID == "" || s.deps.State == nil {
		return "", nil
	}
	ds, err := s.deps.State.GetDocumentState(ctx, recordingID)
	if err != nil {
		slog.Warn("pipeline: load document state failed", "recording_id", recordingID, "error", err)
		return "", nil
	}
	return ds.Focus, ds.Todos
}

func (s *Scheduler) loadRecentCommits(ctx context.Context, recordingID string) []string {
	if recordingID == "" || s.deps.History == nil {
		return nil
	}
	commits, err := s.deps.History.RecentMessages(ctx, recordingID, 5)
	if err != nil {
		slog.Warn("pipeline: load recent commits failed", "recording_id", recordingID, "error", err)
		return nil
	}
	return commits
}

// maybeAutoName checks the auto-naming trigger and, if it fires and the
// generated title is not a near-duplicate of the last one, emits a rename
// notification.
func (s *Scheduler) maybeAutoName(ctx context.Context, recordingID, content string) {
	if s.deps.Flash == nil || !autoname.ShouldTrigger(s.recordingName, recordingID, content) {
		return
	}

	title, ok, err := autoname.Generate(ctx, s.deps.Flash, content, s.previousAutoName)
	if err != nil {
		slog.Warn("pipeline: auto-naming failed", "recording_id", recordingID, "error", err)
		return
	}
	if !ok {
		return
	}

	s.previousAutoName = title
	s.recordingName = title
	s.publish(events.RecordingRenamed{ID: recordingID, NewName: title})
}

// todoSummary renders a recording's active todos as the bullet-list string
// Router 2 expects.
func todoSummary(todos []statestore.Todo) string {
	var b []byte
	for _, t := range todos {
		if t.Completed {
			continue
		}
		b = append(b, "- "...)
		b = append(b, t.Description...)
		b = append(b, '\n')
	}
	return string(b)
}

func containsTab(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\t' {
			return true
		}
	}
	return false
}

func replaceTabs(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\t' {
			out = append(out, ' ', ' ', ' ', ' ')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
