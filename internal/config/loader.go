package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/liveink/liveink/internal/mcp"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":         {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"lightweight": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"embeddings":  {"openai", "ollama"},
}

// validLogLevels lists the log levels accepted in server.log_level.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{
		Pipeline: DefaultPipelineConfig(),
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !slices.Contains(validLogLevels, cfg.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("lightweight", cfg.Providers.Lightweight.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no editing LLM provider configured; APPEND/EDIT/GREP agents will not be able to run")
	}
	if cfg.Providers.Lightweight.Name == "" {
		slog.Warn("no lightweight provider configured; router/focus/todo/commit/auto-name calls will fall back to providers.llm")
	}

	// Embeddings ↔ memory dimensions
	if cfg.Memory.EmbeddingDimensions <= 0 {
		if cfg.Providers.Embeddings.Name != "" {
			slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 512")
		}
		cfg.Memory.EmbeddingDimensions = 512
	}

	// Memory availability
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; state, history, and retrieval stores will not be available")
	}

	// Pipeline tunables
	if cfg.Pipeline.HoldbackDelay < 0 {
		errs = append(errs, fmt.Errorf("pipeline.holdback_delay must not be negative"))
	}
	if cfg.Pipeline.FlushDeadline <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.flush_deadline must be positive"))
	}
	if cfg.Pipeline.MaxBufferChars <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_buffer_chars must be positive"))
	}
	if cfg.Pipeline.MinFlushChars < 0 || cfg.Pipeline.MinFlushChars > cfg.Pipeline.MaxBufferChars {
		errs = append(errs, fmt.Errorf("pipeline.min_flush_chars must be between 0 and max_buffer_chars"))
	}
	if cfg.Pipeline.EditRetryLimit < 0 {
		errs = append(errs, fmt.Errorf("pipeline.edit_retry_limit must not be negative"))
	}
	if cfg.Pipeline.RetrievalSimilarityCutoff < 0 || cfg.Pipeline.RetrievalSimilarityCutoff > 1 {
		errs = append(errs, fmt.Errorf("pipeline.retrieval_similarity_cutoff must be between 0 and 1"))
	}

	// MCP servers
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		transport := mcp.Transport(srv.Transport)
		if srv.Transport != "" && !transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if transport == mcp.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
