// Package commands defines the scheduler's command surface: the set of
// operations an external caller (the desktop shell, in production; a test
// harness here) can submit to the pipeline scheduler.
//
// Commands are plain data — the scheduler's select loop is the only place
// that interprets them.
package commands

// Command is the common interface implemented by every command type. It
// carries no behaviour; it exists so the scheduler's inbound channel can be
// typed as `chan Command` rather than `chan any`.
type Command interface {
	commandMarker()
}

type base struct{}

func (base) commandMarker() {}

// StartRecording begins a new recording with the given id.
type StartRecording struct {
	base
	ID string
}

// LoadRecording switches the active recording to an existing id, loading its
// document from history.
type LoadRecording struct {
	base
	ID string
}

// PauseRecording suspends turn processing without ending the recording.
type PauseRecording struct{ base }

// ResumeRecording resumes turn processing for the active recording.
type ResumeRecording struct{ base }

// StopRecording ends the active recording, returning to Idle.
type StopRecording struct{ base }

// ResetDocument clears the active recording's document and todo list.
type ResetDocument struct{ base }

// UpdateDocument overwrites the active recording's document content directly
// (a manual edit performed outside the agent pipeline).
type UpdateDocument struct {
	base
	Content string
}

// IngestDocument adds an external document's content to the retrieval store
// under the given filename.
type IngestDocument struct {
	base
	Filename string
	Content  string
}

// RollbackToCommit restores the document to the state recorded at hash.
type RollbackToCommit struct {
	base
	Hash string
}

// UndoLastChange asks the UNDO agent to pick and roll back to a recent commit.
type UndoLastChange struct{ base }

// DeleteRecording removes a recording and its history/retrieval tables.
type DeleteRecording struct {
	base
	ID string
}

// AddTodo appends a new todo item.
type AddTodo struct {
	base
	Description string
}

// UpdateTodo changes an existing todo's description.
type UpdateTodo struct {
	base
	ID          string
	Description string
}

// ToggleTodo flips a todo's completed flag.
type ToggleTodo struct {
	base
	ID string
}

// DeleteTodo removes a todo item.
type DeleteTodo struct {
	base
	ID string
}
