package llm

import "github.com/liveink/liveink/pkg/types"

// Message, ToolCall, ToolDefinition, and ModelCapabilities are aliases onto
// pkg/types' definitions rather than a second, parallel type family: the
// Provider interface in provider.go is defined in terms of pkg/types
// directly, and every tool/host/fallback package in this tree constructs
// these values under the llm.* spelling. Aliasing keeps both spellings
// interchangeable instead of silently diverging.
type Message = types.Message
type ToolCall = types.ToolCall
type ToolDefinition = types.ToolDefinition
type ModelCapabilities = types.ModelCapabilities
