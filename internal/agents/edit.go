package agents

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/config"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/pkg/provider/llm"
	"github.com/liveink/liveink/pkg/types"
)

// EditAgent applies one or more SEARCH/REPLACE blocks to the document via
// [docstore.Store.ApplyPatches], grounded on edit_agent.rs. Unlike AppendAgent
// it buffers the full model response before parsing it into patches, and
// re-fetches the document's latest snapshot before every application attempt
// — a manual edit or a concurrent turn may have changed it since the request
// was built.
type EditAgent struct{}

func (EditAgent) Name() string { return "edit" }

func (EditAgent) Execute(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) error {
	retryLimit := deps.Cfg.EditRetryLimit
	if retryLimit <= 0 {
		retryLimit = config.DefaultPipelineConfig().EditRetryLimit
	}

	snap := deps.Doc.Snapshot()
	system := buildSystemMessage(ctx, deps, bb, snap.Content) + editSystemSuffix
	user := userMessage(bb.Turn, bb.PlanContext(), bb.CurrentInstruction(), bb.CurrentStep, len(bb.Plan))

	messages := append(append([]types.Message(nil), bb.ChatHistory...), types.Message{Role: "user", Content: user})

	resp, err := deps.Coder.Complete(ctx, llm.CompletionRequest{SystemPrompt: system, Messages: messages})
	if err != nil {
		return fmt.Errorf("edit agent: %w", err)
	}
	reply := resp.Content

	for attempt := 0; attempt <= retryLimit; attempt++ {
		clean := cleanupEditTags(reply)

		before := deps.Doc.Snapshot()
		applyStart := time.Now()
		s, applied, applyErr := deps.Doc.ApplyPatches(clean)
		metricsOf(deps).EditApplyDuration.Record(ctx, time.Since(applyStart).Seconds())

		// ApplyPatches commits each patch as it succeeds, so a failure partway
		// through a multi-patch response still leaves the earlier patches
		// applied — publish that partial progress before deciding how to
		// proceed on the error below.
		if applied && s.Content != before.Content {
			publish(deps, events.DocumentUpdate{Content: s.Content, Version: s.Version})
			triggerUpdate(ctx, deps, bb, s.Content)
		}

		if applyErr == nil {
			bb.PushHistory(bb.Turn, reply)
			return nil
		}

		slog.Warn("edit agent: apply failed, retrying", "attempt", attempt+1, "error", applyErr)
		if attempt == retryLimit {
			break
		}

		messages = append(messages,
			types.Message{Role: "assistant", Content: reply},
			types.Message{Role: "user", Content: editRetryPrompt(applyErr.Error())},
		)
		// Re-render the system prompt against whatever the document looks
		// like now — a concurrent edit may have changed it since the last
		// attempt.
		system = buildSystemMessage(ctx, deps, bb, deps.Doc.Snapshot().Content) + editSystemSuffix

		resp, err = deps.Coder.Complete(ctx, llm.CompletionRequest{SystemPrompt: system, Messages: messages})
		if err != nil {
			return fmt.Errorf("edit agent: retry %d: %w", attempt+1, err)
		}
		reply = resp.Content
	}

	publish(deps, events.ShowToast{Message: "Edit: could not apply changes after retries", Type: events.ToastWarning})
	return nil
}

// malformedSearchTag and malformedReplaceTag match a line that is entirely a
// SEARCH/REPLACE marker with the wrong number of angle brackets (4-6 instead
// of the canonical 7). Anchoring to the whole line avoids matching an
// already-correct 7-bracket marker as a substring of itself.
var (
	malformedSearchTag  = regexp.MustCompile(`(?m)^<{4,6} SEARCH$`)
	malformedReplaceTag = regexp.MustCompile(`(?m)^>{4,6} REPLACE$`)
)

func cleanupEditTags(s string) string {
	s = malformedSearchTag.ReplaceAllString(s, "<<<<<<< SEARCH")
	s = malformedReplaceTag.ReplaceAllString(s, ">>>>>>> REPLACE")
	s = strings.ReplaceAll(s, "\t", "    ")
	return s
}
