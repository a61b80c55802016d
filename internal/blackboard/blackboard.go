// Package blackboard defines the per-turn shared context that flows through
// the ordered sequence of editing agents (SPEC_FULL.md §3, §4.6). It carries
// only data; the services agents call against (document, state, history,
// retrieval stores, LLM providers) live in internal/agents.Deps, since those
// are owned by the scheduler and outlive any single turn.
package blackboard

import (
	"fmt"
	"strings"

	"github.com/liveink/liveink/internal/router"
	"github.com/liveink/liveink/pkg/types"
)

// maxHistory is the bound on the blackboard's chat-history, carried across
// turns by the pipeline scheduler.
const maxHistory = 6

// Blackboard is created fresh for each turn and discarded after the turn's
// agents finish. It is not safe for concurrent use: editing agents within a
// turn run strictly sequentially.
type Blackboard struct {
	// Turn is the user-spoken text this turn is processing.
	Turn string

	// RecordingID is the active recording, or "" if none is active.
	RecordingID string

	// Plan is Router 1's ordered list of steps.
	Plan []router.PlanStep

	// CurrentStep is the 0-indexed position in Plan the running agent is
	// executing.
	CurrentStep int

	// NeedRetrieval is Router 2's decision.
	NeedRetrieval bool

	// Tool is Router 3's decision.
	Tool router.ToolIntent

	// RetrievedContext is populated by the retrieve agent.
	RetrievedContext string

	// SearchResults is populated by the search agent.
	SearchResults string

	// ChatHistory is carried in from the previous turn and mutated in place;
	// the scheduler persists it back for the next turn.
	ChatHistory []types.Message
}

// New creates a Blackboard for a single turn, seeded with the chat history
// carried over from the previous turn.
func New(turn, recordingID string, plan []router.PlanStep, needRetrieval bool, tool router.ToolIntent, history []types.Message) *Blackboard {
	return &Blackboard{
		Turn:          turn,
		RecordingID:   recordingID,
		Plan:          plan,
		NeedRetrieval: needRetrieval,
		Tool:          tool,
		ChatHistory:   append([]types.Message(nil), history...),
	}
}

// CurrentInstruction returns the instruction text for the step at
// CurrentStep, or a generic fallback if the plan is empty or exhausted.
func (b *Blackboard) CurrentInstruction() string {
	if b.CurrentStep >= 0 && b.CurrentStep < len(b.Plan) {
		return b.Plan[b.CurrentStep].Instruction
	}
	return "Process the user request"
}

// PlanContext renders the full plan as a numbered list for inclusion in an
// agent's prompt, e.g. "1. [APPEND] write the introduction".
func (b *Blackboard) PlanContext() string {
	lines := make([]string, len(b.Plan))
	for i, step := range b.Plan {
		lines[i] = fmt.Sprintf("%d. [%s] %s", i+1, step.Intent, step.Instruction)
	}
	return strings.Join(lines, "\n")
}

// PushHistory appends a user/assistant exchange and truncates the history to
// maxHistory messages, dropping the oldest first.
func (b *Blackboard) PushHistory(userText, assistantText string) {
	b.ChatHistory = append(b.ChatHistory,
		types.Message{Role: "user", Content: userText},
		types.Message{Role: "assistant", Content: assistantText},
	)
	if over := len(b.ChatHistory) - maxHistory; over > 0 {
		b.ChatHistory = b.ChatHistory[over:]
	}
}
