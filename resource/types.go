package resource

import (
	"github.com/wippyai/opcore/errors"
)

// ID is the integer handle a guest uses to refer to a resource.
// ID 0 is reserved and always invalid.
type ID uint32

// Resource is a native capability exposed to guest code.
type Resource interface {
	// Name identifies the resource kind for diagnostics.
	Name() string

	// Close releases the resource. It is called once, when the resource
	// is closed through the table or the table itself is closed.
	Close() error
}

// Reader is implemented by resources that can be read from.
type Reader interface {
	Read(p []byte) (int, error)
}

// Writer is implemented by resources that can be written to.
type Writer interface {
	Write(p []byte) (int, error)
}

// Shutdowner is implemented by resources whose write direction can be
// shut down independently of Close.
type Shutdowner interface {
	Shutdown() error
}

// Base provides default capability methods. Embedding resources get an
// ordinary teardown Close and unsupported Read/Write/Shutdown.
type Base struct{}

func (Base) Close() error { return nil }

func (Base) Read([]byte) (int, error) {
	return 0, errors.Unsupported(errors.PhaseResource, "read")
}

func (Base) Write([]byte) (int, error) {
	return 0, errors.Unsupported(errors.PhaseResource, "write")
}

func (Base) Shutdown() error {
	return errors.Unsupported(errors.PhaseResource, "shutdown")
}

// EventType identifies a resource lifecycle notification.
type EventType uint8

const (
	EventAdded EventType = iota
	EventClosed
	EventTaken
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventClosed:
		return "closed"
	case EventTaken:
		return "taken"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle transition.
type Event struct {
	Resource Resource
	Err      error
	ID       ID
	Type     EventType
}

// Observer receives table lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }
