// Package workspace provides the narrow path-resolution-and-existence check
// the pipeline scheduler depends on before activating a recording
// (SPEC_FULL.md §6, §7 "Workspace missing"). The actual workspace directory
// layout and CRUD (creating/renaming/switching workspaces,
// workspaces.json, a per-recording "<id>.md" plus metadata.json and a
// version-history subdirectory) is owned by an external collaborator — the
// shell embedding this engine — exactly like the original's
// WorkspaceManager/recording_commands pairing. This package only answers
// "is the currently selected workspace still there on disk", the one fact
// the scheduler needs to reject a start/load against a workspace that has
// been moved or deleted out from under it.
package workspace

import (
	"context"
	"fmt"
	"os"
)

// Workspace resolves whether the caller's current workspace still exists.
// Implementations may back this with a local directory, a mounted network
// path, or (in tests) a fixed answer.
type Workspace interface {
	// Exists reports whether the workspace is currently reachable.
	Exists(ctx context.Context) (bool, error)
}

// Dir is a Workspace backed by a single directory on the local filesystem,
// mirroring the original's `workspace.path.exists()` check
// (workspace_manager.rs, recording_commands.rs) ahead of every recording
// operation.
type Dir struct {
	path string
}

// New returns a Dir rooted at path. path is not created or validated here —
// Exists performs the check lazily on every call, since the directory may be
// removed or remounted at any point during the process lifetime.
func New(path string) *Dir {
	return &Dir{path: path}
}

// Exists reports whether d.path currently resolves to a directory.
func (d *Dir) Exists(ctx context.Context) (bool, error) {
	if d.path == "" {
		return false, nil
	}
	info, err := os.Stat(d.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("workspace: stat %q: %w", d.path, err)
	}
	return info.IsDir(), nil
}
