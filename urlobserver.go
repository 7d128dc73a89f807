// Package urlobserver watches navigation in a browser tab and turns it into
// an audited stream of route changes.
//
// An Observer listens for link clicks, popstate and hashchange on a
// navenv.Environment, matches the destination against registered route
// patterns, lets scoped before-route handlers veto the change, then pushes
// or replaces the history entry and records an audit Entry.
//
// # Quick Start
//
//	env := navenv.NewMemory("https://app.test/")
//	obs := urlobserver.New(env, urlobserver.WithDwellTime(time.Second))
//
//	err := obs.Observe(ctx, []*regexp.Regexp{
//	    regexp.MustCompile(`^/users$`),
//	    regexp.MustCompile(`^/users/(?P<id>[^/]+)$`),
//	})
//
//	obs.Add(urlobserver.RouteOption{
//	    Pattern: regexp.MustCompile(`^/users/(?P<id>[^/]+)$`),
//	    Scope:   "editor",
//	    Handler: func(ctx context.Context, params map[string]string, status navenv.Status) (bool, error) {
//	        return !unsavedChanges(), nil
//	    },
//	})
//
//	obs.Match("/users/42") // {Found: true, Params: {"id": "42"}}
//
// # Push or Replace
//
// Only link clicks may grow the history stack, and only when they are more
// than the dwell time apart. Every other navigation, and any click arriving
// within the dwell time of the previous accepted navigation, replaces the
// current entry. A negative dwell time makes every click push.
//
// # Events
//
// After each accepted navigation the observer dispatches PopStateEvent (for
// popstate) or PushStateEvent (for everything else) through the environment,
// with a RouteEvent detail.
package urlobserver

import (
	"context"

	"github.com/vango-dev/urlobserver/pkg/entrylist"
	"github.com/vango-dev/urlobserver/pkg/navenv"
)

// Custom event names dispatched after a navigation is committed.
const (
	PopStateEvent  = ":popState"
	PushStateEvent = ":pushState"
)

// RouteEvent is the detail of PopStateEvent and PushStateEvent.
type RouteEvent struct {
	Found  bool              `json:"found"`
	Params map[string]string `json:"params"`
	Scope  string            `json:"scope"`
	Status navenv.Status     `json:"status"`
	URL    string            `json:"url"`
}

// Callback runs after every accepted navigation.
type Callback func(list *entrylist.List, o *Observer)

// Archiver receives the audit trail when an observer disconnects.
type Archiver interface {
	Archive(ctx context.Context, id string, entries []entrylist.Entry) error
}
