package session

import (
	"time"

	"github.com/google/uuid"
)

// EventKind tags a progress event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventTick
	EventSkipped
	EventNotFound
	EventFound
	EventDelivered
	EventSuppressed
	EventTorch
	EventStopped
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventTick:
		return "tick"
	case EventSkipped:
		return "skipped"
	case EventNotFound:
		return "not found"
	case EventFound:
		return "found"
	case EventDelivered:
		return "delivered"
	case EventSuppressed:
		return "suppressed"
	case EventTorch:
		return "torch"
	case EventStopped:
		return "stopped"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports session progress to an observer such as the terminal UI.
type Event struct {
	Kind     EventKind
	Session  uuid.UUID
	Attempt  int
	Strategy string
	Value    string
	Err      error
	At       time.Time
}

func (c *Controller) emit(ev Event) {
	if c.cfg.Events == nil {
		return
	}
	ev.At = time.Now()
	select {
	case c.cfg.Events <- ev:
	default:
	}
}
