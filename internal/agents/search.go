package agents

import (
	"context"
	"log/slog"

	"github.com/liveink/liveink/internal/blackboard"
	"github.com/liveink/liveink/internal/events"
	"github.com/liveink/liveink/internal/mcp"
	"github.com/liveink/liveink/pkg/provider/llm"
	"github.com/liveink/liveink/pkg/types"
)

const searchSystemPrompt = `You answer a user's question using the search tools available to you.
Call a tool if it would help answer the question, then respond with a concise,
factual summary of what you found. If no tool helps, say so briefly.`

// SearchAgent answers Router 3's search intent with an LLM call carrying the
// MCP host's tool catalogue attached, dispatching any requested tool call
// through the host and re-prompting with its result. The original
// implementation (search_agent.rs) never got past a hardcoded placeholder
// string and made no LLM call at all; both the placeholder and the lack of a
// model in the loop are replaced here, falling back to the original's
// empty-string behaviour when no host or no tool is available.
type SearchAgent struct{}

func (SearchAgent) Name() string { return "search" }

func (a SearchAgent) Execute(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) error {
	bb.SearchResults = a.gather(ctx, deps, bb)
	return nil
}

func (SearchAgent) gather(ctx context.Context, deps *Deps, bb *blackboard.Blackboard) string {
	if !bb.Tool.Search {
		return ""
	}
	if deps.MCP == nil {
		slog.Warn("search agent: no MCP host registered, search is disabled")
		return ""
	}
	if deps.Flash == nil {
		slog.Warn("search agent: no LLM provider configured")
		return ""
	}

	tools := deps.MCP.AvailableTools(mcp.BudgetDeep)
	if len(tools) == 0 {
		slog.Warn("search agent: no tools registered on the MCP host")
		return ""
	}

	messages := []types.Message{{Role: "user", Content: bb.Turn}}

	resp, err := deps.Flash.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: searchSystemPrompt,
		Messages:     messages,
		Tools:        tools,
	})
	if err != nil {
		slog.Warn("search agent: completion failed", "error", err)
		publish(deps, events.ShowToast{Message: "Search failed; continuing without search results", Type: events.ToastWarning})
		return ""
	}

	if len(resp.ToolCalls) == 0 {
		return resp.Content
	}

	messages = append(messages, types.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
	for _, call := range resp.ToolCalls {
		result, err := deps.MCP.ExecuteTool(ctx, call.Name, call.Arguments)
		content := ""
		switch {
		case err != nil:
			slog.Warn("search agent: tool call failed", "tool", call.Name, "error", err)
			content = "tool call failed: " + err.Error()
		case result.IsError:
			slog.Warn("search agent: tool returned an error", "tool", call.Name, "message", result.Content)
			content = result.Content
		default:
			content = result.Content
		}
		messages = append(messages, types.Message{Role: "tool", Content: content, ToolCallID: call.ID})
	}

	final, err := deps.Flash.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: searchSystemPrompt,
		Messages:     messages,
		Tools:        tools,
	})
	if err != nil {
		slog.Warn("search agent: re-prompt after tool call failed", "error", err)
		publish(deps, events.ShowToast{Message: "Search failed; continuing without search results", Type: events.ToastWarning})
		return ""
	}
	return final.Content
}
