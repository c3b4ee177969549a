// Package models defines the core data types for the location registry.
package models

import "time"

// WindowID is an opaque, compositor-assigned window handle. It is unique at
// any instant but may be reused once the window it named has closed.
type WindowID string

// Location is an absolute filesystem path supplied by a writer.
type Location string

// Source values reported in a Resolution.
const (
	SourceRegistry    = "registry"
	SourceProcessTree = "process-tree"
)

// Entry is the last location registered for a window.
type Entry struct {
	Window       WindowID  `json:"window"`
	Location     Location  `json:"location"`
	RegisteredAt time.Time `json:"registered_at"`
	WriterPID    int       `json:"writer_pid"`
	Program      string    `json:"program,omitempty"`   // writer program name e.g. "nvim"
	NvimPipe     string    `json:"nvim_pipe,omitempty"` // RPC address of the writing nvim (v:servername)
}

// Window is a live window as reported by the compositor.
type Window struct {
	ID    WindowID
	PID   int
	Class string
	Title string
}

// EventKind enumerates window lifecycle events.
type EventKind int

const (
	EventCreated EventKind = iota + 1
	EventFocused
	EventClosed
)

// String returns the lowercase event name.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventFocused:
		return "focused"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// WindowEvent is a single lifecycle notification from the compositor.
type WindowEvent struct {
	Kind   EventKind
	Window WindowID
}

// Resolution is the answer to a get query.
type Resolution struct {
	Window   WindowID `json:"window"`
	Location Location `json:"location"`
	Source   string   `json:"source"` // SourceRegistry | SourceProcessTree
	NvimPipe string   `json:"nvim_pipe,omitempty"`
}

// WriteRequest carries a location registration.
// Window, when set, overrides pid-based owner attribution.
type WriteRequest struct {
	Location Location `json:"location"`
	PID      int      `json:"pid,omitempty"`
	Window   WindowID `json:"window,omitempty"`
	Program  string   `json:"program,omitempty"`
	NvimPipe string   `json:"nvim_pipe,omitempty"`
}

// ValidateLocation rejects the empty location. Any other value, including
// one made of whitespace, is stored as given; path existence is the writer's
// responsibility.
func ValidateLocation(loc Location) error {
	if loc == "" {
		return ErrInvalidLocation
	}
	return nil
}
