package client

import (
	"fmt"
	"slices"
	"sync"
)

// EventKind identifies a notification sent to the UI
type EventKind int

const (
	EventSidebarShown EventKind = iota + 1
	EventProjectsReady
	EventWarning
)

func (k EventKind) String() string {
	switch k {
	case EventSidebarShown:
		return "sidebarShown"
	case EventProjectsReady:
		return "projectsReady"
	case EventWarning:
		return "warning"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a one-shot notification. Projects is set for EventProjectsReady,
// Warning for EventWarning.
type Event struct {
	Kind     EventKind
	Projects []string
	Warning  string
}

// Notifier receives UI events from the flow controller, which calls it inline.
// Implementations must not block for long or call back into Abandon or SignOut.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// MultiNotifier fans an event out to each notifier in order
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// Recorder is a Notifier that keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Projects = slices.Clone(e.Projects)
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Count returns how many events of the given kind were recorded
func (r *Recorder) Count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent event of the given kind
func (r *Recorder) Last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}
