// Package events defines the scheduler's event surface: the notifications
// pushed out to external listeners (the desktop shell, in production) as a
// turn is processed.
package events

// Event is the common interface implemented by every event type.
type Event interface {
	eventMarker()
}

type base struct{}

func (base) eventMarker() {}

// DocumentUpdate is emitted after every document mutation.
type DocumentUpdate struct {
	base
	Content string
	Version uint64
}

// TranscriptUpdate reports the raw ASR fragment as it was received, before
// aggregation into a turn.
type TranscriptUpdate struct {
	base
	Text string
}

// TodoUpdate reports the full current todo list after a maintenance pass.
type TodoUpdate struct {
	base
	Todos []Todo
}

// Todo mirrors the state store's todo shape for event delivery.
type Todo struct {
	ID                string
	Description       string
	Completed         bool
	CompletedTurnsAgo *uint32
}

// AgentStatus reports whether the pipeline is actively processing a turn.
type AgentStatus struct {
	base
	Status string // "thinking" or "idle"
}

// MicVolume reports the current input volume level, 0-100.
type MicVolume struct {
	base
	Level int
}

// ToastType enumerates the severity of a ShowToast event.
type ToastType string

const (
	ToastInfo    ToastType = "info"
	ToastSuccess ToastType = "success"
	ToastWarning ToastType = "warning"
	ToastError   ToastType = "error"
)

// ShowToast asks the shell to display a transient notification.
type ShowToast struct {
	base
	Message  string
	Type     ToastType
	Duration int // milliseconds; 0 means use the shell's default
}

// RecordingStarted reports that a recording has become active.
type RecordingStarted struct {
	base
	ID string
}

// RecordingRenamed reports an auto-naming or manual rename.
type RecordingRenamed struct {
	base
	ID      string
	NewName string
}

// RecordingsUpdated asks listeners to re-fetch the recording list.
type RecordingsUpdated struct{ base }

// SearchResults carries the search agent's response text for the turn that
// triggered it.
type SearchResults struct {
	base
	Query   string
	Content string
}
