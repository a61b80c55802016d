package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/pkg/provider/llm"
	"github.com/liveink/liveink/pkg/types"
)

// AppendAgent streams new material directly onto the end of the document,
// grounded on the original implementation's append_agent.rs: unlike the
// other editing agents it writes incrementally, chunk by chunk, rather than
// buffering a full response before applying it.
type AppendAgent struct{}

func (AppendAgent) Name() string { return "append" }

var twoSpaceIndent = regexp.MustCompile(`(?m)^  `)

func (AppendAgent) Execute(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) error {
	snap := deps.Doc.Snapshot()
	system := buildSystemMessage(ctx, deps, bb, snap.Content) + appendSystemSuffix
	user := userMessage(bb.Turn, bb.PlanContext(), bb.CurrentInstruction(), bb.CurrentStep, len(bb.Plan))

	first := true
	response, err := streamText(ctx, deps.Coder, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     append(append([]types.Message(nil), bb.ChatHistory...), types.Message{Role: "user", Content: user}),
	}, func(fragment string) {
		fragment = strings.ReplaceAll(fragment, "\t", "    ")
		if first {
			s := deps.Doc.EnsureNewlines(2)
			publish(deps, events.DocumentUpdate{Content: s.Content, Version: s.Version})
			first = false
		}
		s := deps.Doc.Append(fragment)
		publish(deps, events.DocumentUpdate{Content: s.Content, Version: s.Version})
	})
	if err != nil {
		return fmt.Errorf("append agent: %w", err)
	}

	cleaned := strings.ReplaceAll(response, "\t", "    ")
	cleaned = twoSpaceIndent.ReplaceAllString(cleaned, "    ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}

	final := deps.Doc.Snapshot()
	triggerUpdate(ctx, deps, bb, final.Content)
	bb.PushHistory(bb.Turn, response)
	return nil
}
