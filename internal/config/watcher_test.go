package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/liveink/liveink/internal/config"
)

func writeWatcherFile(t *testing.T, path, logLevel string, mtime time.Time) {
	t.Helper()
	content := []byte(watcherYAMLTemplateFor(logLevel))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func watcherYAMLTemplateFor(logLevel string) string {
	return "server:\n  log_level: " + logLevel + "\nproviders:\n  llm:\n    name: openai\n"
}

func TestNewWatcher_LoadsInitialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatcherFile(t, path, "info", time.Now())

	w, err := config.NewWatcher(path, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current(); got == nil || got.Server.LogLevel != "info" {
		t.Errorf("Current() = %+v, want log_level=info", got)
	}
}

func TestNewWatcher_MissingFileReturnsError(t *testing.T) {
	_, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestNewWatcher_MalformedInitialConfigReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a mapping"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := config.NewWatcher(path, nil)
	if err == nil {
		t.Fatal("expected an error for a malformed initial config")
	}
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	start := time.Now().Add(-time.Hour)
	writeWatcherFile(t, path, "info", start)

	type change struct{ old, new *config.Config }
	changes := make(chan change, 1)

	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- change{old, new}
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeWatcherFile(t, path, "debug", start.Add(time.Minute))

	select {
	case c := <-changes:
		if c.old.Server.LogLevel != "info" {
			t.Errorf("onChange old.LogLevel = %q, want %q", c.old.Server.LogLevel, "info")
		}
		if c.new.Server.LogLevel != "debug" {
			t.Errorf("onChange new.LogLevel = %q, want %q", c.new.Server.LogLevel, "debug")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called after the file was modified")
	}

	if got := w.Current().Server.LogLevel; got != "debug" {
		t.Errorf("Current().Server.LogLevel = %q, want %q after reload", got, "debug")
	}
}

func TestWatcher_IgnoresTouchWithoutContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	start := time.Now().Add(-time.Hour)
	writeWatcherFile(t, path, "info", start)

	calls := make(chan struct{}, 1)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		calls <- struct{}{}
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Touch the file (new mtime, identical content) — must not trigger onChange.
	writeWatcherFile(t, path, "info", start.Add(time.Minute))

	select {
	case <-calls:
		t.Fatal("onChange was called for a content-identical touch")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	start := time.Now().Add(-time.Hour)
	writeWatcherFile(t, path, "info", start)

	calls := make(chan struct{}, 1)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		calls <- struct{}{}
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("server: [broken"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, start.Add(time.Minute), start.Add(time.Minute)); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	select {
	case <-calls:
		t.Fatal("onChange was called for an invalid reload")
	case <-time.After(150 * time.Millisecond):
	}

	if got := w.Current().Server.LogLevel; got != "info" {
		t.Errorf("Current().Server.LogLevel = %q, want unchanged %q after a failed reload", got, "info")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatcherFile(t, path, "info", time.Now())

	w, err := config.NewWatcher(path, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	w.Stop()
	w.Stop()
}

func TestWithInterval_IgnoresNonPositiveDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatcherFile(t, path, "info", time.Now())

	// A non-positive interval must not panic NewWatcher or break the default
	// polling loop; NewWatcher should simply keep its 5s default.
	w, err := config.NewWatcher(path, nil, config.WithInterval(0))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
}
