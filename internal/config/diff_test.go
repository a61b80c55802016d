package config

import "testing"

func baseDiffConfig() *Config {
	return &Config{
		Server:   ServerConfig{LogLevel: "info"},
		Pipeline: DefaultPipelineConfig(),
		MCP: MCPConfig{Servers: []MCPServerConfig{
			{Name: "tools", Transport: "stdio", Command: "/usr/local/bin/mcp-tools", Env: map[string]string{"FOO": "bar"}},
		}},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old := baseDiffConfig()
	d := Diff(old, baseDiffConfig())

	if d.LogLevelChanged || d.PipelineChanged || d.MCPServersChanged {
		t.Errorf("Diff reported changes between identical configs: %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	old := baseDiffConfig()
	newCfg := baseDiffConfig()
	newCfg.Server.LogLevel = "debug"

	d := Diff(old, newCfg)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged = true")
	}
	if d.NewLogLevel != "debug" {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, "debug")
	}
	if d.PipelineChanged || d.MCPServersChanged {
		t.Errorf("unrelated fields flagged as changed: %+v", d)
	}
}

func TestDiff_PipelineChanged(t *testing.T) {
	old := baseDiffConfig()
	newCfg := baseDiffConfig()
	newCfg.Pipeline.MaxBufferChars = 900

	d := Diff(old, newCfg)
	if !d.PipelineChanged {
		t.Fatal("expected PipelineChanged = true")
	}
	if d.NewPipeline.MaxBufferChars != 900 {
		t.Errorf("NewPipeline.MaxBufferChars = %d, want 900", d.NewPipeline.MaxBufferChars)
	}
}

func TestDiff_MCPServersChanged_CountDiffers(t *testing.T) {
	old := baseDiffConfig()
	newCfg := baseDiffConfig()
	newCfg.MCP.Servers = append(newCfg.MCP.Servers, MCPServerConfig{Name: "web", Transport: "streamable-http", URL: "https://tools.example.com/mcp"})

	d := Diff(old, newCfg)
	if !d.MCPServersChanged {
		t.Fatal("expected MCPServersChanged = true when server count differs")
	}
}

func TestDiff_MCPServersChanged_FieldDiffers(t *testing.T) {
	old := baseDiffConfig()
	newCfg := baseDiffConfig()
	newCfg.MCP.Servers[0].Command = "/usr/local/bin/mcp-tools-v2"

	d := Diff(old, newCfg)
	if !d.MCPServersChanged {
		t.Fatal("expected MCPServersChanged = true when a server field differs")
	}
}

func TestDiff_MCPServersChanged_EnvDiffers(t *testing.T) {
	old := baseDiffConfig()
	newCfg := baseDiffConfig()
	newCfg.MCP.Servers[0].Env = map[string]string{"FOO": "baz"}

	d := Diff(old, newCfg)
	if !d.MCPServersChanged {
		t.Fatal("expected MCPServersChanged = true when env map values differ")
	}
}

func TestDiff_MCPServersUnchanged_EnvSameContentDifferentMap(t *testing.T) {
	old := baseDiffConfig()
	newCfg := baseDiffConfig()
	newCfg.MCP.Servers[0].Env = map[string]string{"FOO": "bar"}

	d := Diff(old, newCfg)
	if d.MCPServersChanged {
		t.Error("expected MCPServersChanged = false when env maps are equal by content, even if not the same map instance")
	}
}

func TestSameServer(t *testing.T) {
	a := MCPServerConfig{Name: "tools", Transport: "stdio", Command: "cmd", Env: map[string]string{"A": "1"}}
	b := MCPServerConfig{Name: "tools", Transport: "stdio", Command: "cmd", Env: map[string]string{"A": "1"}}
	if !sameServer(a, b) {
		t.Error("sameServer(a, b) = false, want true for equivalent configs")
	}

	c := b
	c.Env = map[string]string{"A": "1", "B": "2"}
	if sameServer(a, c) {
		t.Error("sameServer(a, c) = true, want false when env map sizes differ")
	}
}
