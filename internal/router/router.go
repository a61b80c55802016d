// Package router implements the three-way intent classification that opens
// every turn (SPEC_FULL.md §4.3): a document-intent plan, a retrieval-needed
// flag, and a tool-use decision, each produced by a separate lightweight LLM
// call. All three calls fan out concurrently via errgroup, the same join
// pattern the teacher's hot-context assembler uses for its three-way
// concurrent fetch — but unlike that assembler, a single router's failure
// never aborts the others: each call degrades to its own documented fallback
// instead of propagating an error out of the group.
package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/liveink/liveink/internal/resilience"
	"github.com/liveink/liveink/pkg/provider/llm"
	"github.com/liveink/liveink/pkg/types"
)

// Intent is a document-editing intent classified by Router 1.
type Intent string

const (
	IntentNoOp   Intent = "NO-OP"
	IntentAppend Intent = "APPEND"
	IntentEdit   Intent = "EDIT"
	IntentGrep   Intent = "GREP"
	IntentUndo   Intent = "UNDO"
	IntentClear  Intent = "CLEAR"
)

// PlanStep is one step of Router 1's plan, carrying the classified intent and
// an explicit natural-language instruction for the agent that executes it.
type PlanStep struct {
	Intent      Intent
	Instruction string
}

// ToolIntent is Router 3's classification: either no tool use, or a search
// with the query to run.
type ToolIntent struct {
	Search bool
	Query  string
}

// Result bundles the outcome of all three routers for a single turn.
type Result struct {
	Plan          []PlanStep
	NeedRetrieval bool
	Tool          ToolIntent
}

// planLinePattern matches a numbered plan line: "1. [APPEND] do the thing".
// The brackets around the intent are optional.
var planLinePattern = regexp.MustCompile(`(?m)^\s*\d+\.\s*\[?([A-Za-z_-]+)\]?\s*(.*)$`)

var intentAliases = map[string]Intent{
	"NO-OP": IntentNoOp, "NOOP": IntentNoOp, "NO_OP": IntentNoOp,
	"APPEND": IntentAppend,
	"EDIT":   IntentEdit,
	"GREP":   IntentGrep,
	"UNDO":   IntentUndo, "NOTH": IntentUndo,
	"CLEAR": IntentClear,
}

// Router drives the three classification calls against a shared lightweight
// LLM provider, each wrapped in its own circuit breaker.
type Router struct {
	llm         llm.Provider
	planBreaker *resilience.CircuitBreaker
	ragBreaker  *resilience.CircuitBreaker
	toolBreaker *resilience.CircuitBreaker
}

// New creates a Router backed by lightweight, a low-latency LLM provider
// suited to single-shot classification calls.
func New(lightweight llm.Provider) *Router {
	return &Router{
		llm:         lightweight,
		planBreaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "router-plan"}),
		ragBreaker:  resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "router-rag"}),
		toolBreaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "router-tool"}),
	}
}

// Route runs all three routers concurrently against the current document and
// the turn text, applying each one's documented fallback on failure rather
// than surfacing an error to the caller.
func (r *Router) Route(ctx context.Context, currentDoc, turn, focus string, recentCommits []string, todoSummary string) Result {
	var (
		plan          []PlanStep
		needRetrieval bool
		tool          ToolIntent
	)

	var eg errgroup.Group
	eg.Go(func() error {
		plan = r.planDocIntents(ctx, currentDoc, turn)
		return nil
	})
	eg.Go(func() error {
		needRetrieval = r.checkRetrievalNeed(ctx, currentDoc, focus, recentCommits, todoSummary, turn)
		return nil
	})
	eg.Go(func() error {
		tool = r.classifyTool(ctx, currentDoc, turn)
		return nil
	})
	_ = eg.Wait() // every goroutine above always returns nil

	if strings.TrimSpace(currentDoc) == "" {
		plan = []PlanStep{{Intent: IntentAppend, Instruction: "Process transcript"}}
	}

	return Result{Plan: plan, NeedRetrieval: needRetrieval, Tool: tool}
}

// planDocIntents runs Router 1. On any failure (request error or an
// unparseable response) it falls back to a single APPEND step.
func (r *Router) planDocIntents(ctx context.Context, currentDoc, turn string) []PlanStep {
	fallback := []PlanStep{{Intent: IntentAppend, Instruction: "Process transcript"}}

	response, err := r.complete(ctx, r.planBreaker, planPrompt(currentDoc, turn))
	if err != nil {
		return fallback
	}

	steps := parsePlan(response)
	if len(steps) == 0 {
		return fallback
	}
	return steps
}

// checkRetrievalNeed runs Router 2. Any failure falls back to false.
func (r *Router) checkRetrievalNeed(ctx context.Context, currentDoc, focus string, recentCommits []string, todoSummary, turn string) bool {
	response, err := r.complete(ctx, r.ragBreaker, retrievalNeedPrompt(currentDoc, focus, recentCommits, todoSummary, turn))
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "true":
		return true
	default:
		return false
	}
}

// classifyTool runs Router 3. Any failure falls back to ToolIntent{}
// (no tool use).
func (r *Router) classifyTool(ctx context.Context, currentDoc, turn string) ToolIntent {
	response, err := r.complete(ctx, r.toolBreaker, toolIntentPrompt(currentDoc, turn))
	if err != nil {
		return ToolIntent{}
	}
	switch strings.ToUpper(strings.TrimSpace(response)) {
	case "SEARCH":
		return ToolIntent{Search: true, Query: turn}
	default:
		return ToolIntent{}
	}
}

// complete runs a single-message completion through breaker, returning the
// trimmed response text.
func (r *Router) complete(ctx context.Context, breaker *resilience.CircuitBreaker, prompt string) (string, error) {
	var response string
	err := breaker.Execute(func() error {
		resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
			Messages: []types.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			return fmt.Errorf("router: complete: %w", err)
		}
		response = strings.TrimSpace(resp.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return response, nil
}

// parsePlan extracts plan steps from a numbered-list response. Lines that do
// not match the expected shape, or whose intent is not in the known set, are
// skipped. A single unadorned intent word with no numbering is also accepted
// for backward compatibility with simpler model outputs.
func parsePlan(response string) []PlanStep {
	var steps []PlanStep
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := planLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		intent, ok := intentAliases[strings.ToUpper(m[1])]
		if !ok {
			continue
		}
		steps = append(steps, PlanStep{Intent: intent, Instruction: strings.TrimSpace(m[2])})
	}
	if len(steps) > 0 {
		return steps
	}

	if intent, ok := intentAliases[strings.ToUpper(strings.TrimSpace(response))]; ok {
		return []PlanStep{{Intent: intent, Instruction: "Process transcript"}}
	}
	return nil
}
