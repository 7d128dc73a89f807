package navenv

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Status is the cause of a navigation.
type Status string

const (
	StatusInit       Status = "init"
	StatusClick      Status = "click"
	StatusHashChange Status = "hashchange"
	StatusPopState   Status = "popstate"
	StatusManual     Status = "manual"
)

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInit, StatusClick, StatusHashChange, StatusPopState, StatusManual:
		return true
	}
	return false
}

// EventKind identifies the DOM event a listener is attached to.
type EventKind string

const (
	EventClick      EventKind = "click"
	EventPopState   EventKind = "popstate"
	EventHashChange EventKind = "hashchange"
)

// State is the history state object stored alongside a history entry.
type State map[string]any

// Scope returns the "scope" key of the state, if any.
func (s State) Scope() string {
	if s == nil {
		return ""
	}
	v, _ := s["scope"].(string)
	return v
}

// Event is implemented by *ClickEvent, *PopStateEvent and *HashChangeEvent.
type Event interface {
	Kind() EventKind
}

// Listener receives events for the kind it was registered with.
type Listener func(ctx context.Context, ev Event)

// Environment is the browser surface consumed by the observer.
//
// Implementations must be safe for concurrent use. Listeners may be invoked
// on any goroutine.
type Environment interface {
	// Location returns a copy of the current location.
	Location() *url.URL

	// BaseURI returns the document base URI, or nil to fall back to Location.
	BaseURI() *url.URL

	// IsTopLevel reports whether the window is not embedded in another frame.
	IsTopLevel() bool

	// PushState adds a history entry and makes rawURL the current location.
	PushState(state State, rawURL string)

	// ReplaceState overwrites the current history entry.
	ReplaceState(state State, rawURL string)

	// AddEventListener registers l for kind. The returned function detaches
	// it and may be called any number of times.
	AddEventListener(kind EventKind, l Listener) (remove func())

	// Dispatch fires a custom event on the window.
	Dispatch(name string, detail any)

	// Now reads the monotonic clock, measured from environment start.
	Now() time.Duration
}

// Origin returns scheme://host of u, or "" for nil.
func Origin(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// SameOrigin reports whether a and b share scheme and host.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return Origin(a) == Origin(b)
}
