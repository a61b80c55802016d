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

// GrepAgent performs a single find/replace against the document, grounded on
// grep_agent.rs. The model names exactly one FIND/REPLACE pair; FIND is
// first tried as a regular expression, falling back to a literal substring
// match if it fails to compile.
type GrepAgent struct{}

func (GrepAgent) Name() string { return "grep" }

func (GrepAgent) Execute(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) error {
	snap := deps.Doc.Snapshot()
	system := buildSystemMessage(ctx, deps, bb, snap.Content) + grepSystemSuffix
	user := userMessage(bb.Turn, bb.PlanContext(), bb.CurrentInstruction(), bb.CurrentStep, len(bb.Plan))

	resp, err := deps.Coder.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     append(append([]types.Message(nil), bb.ChatHistory...), types.Message{Role: "user", Content: user}),
	})
	if err != nil {
		return fmt.Errorf("grep agent: %w", err)
	}

	find, replace := parseFindReplace(resp.Content)
	if find == "" {
		publish(deps, events.ShowToast{
			Message: "Grep: no pattern supplied",
			Type:    events.ToastWarning,
		})
		return nil
	}

	latest := deps.Doc.Snapshot()
	next := applyFindReplace(latest.Content, find, replace)
	if next == latest.Content {
		publish(deps, events.ShowToast{
			Message: fmt.Sprintf("Grep: Pattern not found '%s'", find),
			Type:    events.ToastWarning,
		})
		return nil
	}

	s := deps.Doc.Reset(next)
	publish(deps, events.DocumentUpdate{Content: s.Content, Version: s.Version})
	triggerUpdate(ctx, deps, bb, s.Content)
	bb.PushHistory(bb.Turn, resp.Content)
	return nil
}

func parseFindReplace(response string) (find, replace string) {
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "FIND:"):
			find = strings.TrimSpace(strings.TrimPrefix(trimmed, "FIND:"))
		case strings.HasPrefix(trimmed, "REPLACE:"):
			replace = strings.TrimSpace(strings.TrimPrefix(trimmed, "REPLACE:"))
		}
	}
	return find, replace
}

func applyFindReplace(doc, find, replace string) string {
	if re, err := regexp.Compile(find); err == nil {
		return re.ReplaceAllString(doc, replace)
	}
	return strings.ReplaceAll(doc, find, replace)
}
