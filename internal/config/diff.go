package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     string

	PipelineChanged bool
	NewPipeline     PipelineConfig

	MCPServersChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: pipeline
// tunables, log level, and the MCP server list. Provider and memory settings
// require a process restart and are not tracked here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Pipeline != new.Pipeline {
		d.PipelineChanged = true
		d.NewPipeline = new.Pipeline
	}

	if len(old.MCP.Servers) != len(new.MCP.Servers) {
		d.MCPServersChanged = true
	} else {
		for i := range old.MCP.Servers {
			if !sameServer(old.MCP.Servers[i], new.MCP.Servers[i]) {
				d.MCPServersChanged = true
				break
			}
		}
	}

	return d
}

// sameServer reports whether two MCP server configs are equivalent.
// Compared field-by-field since MCPServerConfig.Env is a map and not
// comparable with ==.
func sameServer(a, b MCPServerConfig) bool {
	if a.Name != b.Name || a.Transport != b.Transport || a.Command != b.Command || a.URL != b.URL {
		return false
	}
	if len(a.Env) != len(b.Env) {
		return false
	}
	for k, v := range a.Env {
		if b.Env[k] != v {
			return false
		}
	}
	return true
}
