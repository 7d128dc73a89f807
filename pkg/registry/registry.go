// Package registry holds the route table of a URL observer.
//
// A route is keyed by the textual form of its pattern: two *regexp.Regexp
// values compiled from the same expression are the same route. Each route
// carries an ordered set of before-route handlers, one per scope.
package registry

import (
	"context"
	"regexp"
	"sync"

	"github.com/vango-dev/urlobserver/pkg/navenv"
)

// DefaultScope is used when a handler is added or removed with an empty scope.
const DefaultScope = ":default"

// Handler is consulted before a scoped navigation is committed.
// Returning false vetoes the navigation.
type Handler func(ctx context.Context, params map[string]string, status navenv.Status) (bool, error)

// NormalizeScope maps "" to DefaultScope.
func NormalizeScope(scope string) string {
	if scope == "" {
		return DefaultScope
	}
	return scope
}

// Route is a registered pattern and its scoped handlers.
type Route struct {
	Pattern *regexp.Regexp

	scopes   []string
	handlers map[string]Handler
}

func newRoute(pattern *regexp.Regexp) *Route {
	return &Route{Pattern: pattern, handlers: make(map[string]Handler)}
}

// Key returns the registry key of the route.
func (r *Route) Key() string {
	return r.Pattern.String()
}

// Handler returns the handler registered for scope (exact match).
func (r *Route) Handler(scope string) (Handler, bool) {
	h, ok := r.handlers[scope]
	return h, ok
}

// Scopes returns the scope names in insertion order.
func (r *Route) Scopes() []string {
	out := make([]string, len(r.scopes))
	copy(out, r.scopes)
	return out
}

func (r *Route) set(scope string, h Handler) {
	if _, ok := r.handlers[scope]; !ok {
		r.scopes = append(r.scopes, scope)
	}
	r.handlers[scope] = h
}

func (r *Route) unset(scope string) bool {
	if _, ok := r.handlers[scope]; !ok {
		return false
	}
	delete(r.handlers, scope)
	for i, s := range r.scopes {
		if s == scope {
			r.scopes = append(r.scopes[:i:i], r.scopes[i+1:]...)
			break
		}
	}
	return true
}

func (r *Route) clone() *Route {
	c := &Route{
		Pattern:  r.Pattern,
		scopes:   append([]string(nil), r.scopes...),
		handlers: make(map[string]Handler, len(r.handlers)),
	}
	for k, v := range r.handlers {
		c.handlers[k] = v
	}
	return c
}

// RouteInfo is a read-only description of a route.
type RouteInfo struct {
	Pattern string   `json:"pattern" yaml:"pattern"`
	Scopes  []string `json:"scopes" yaml:"scopes"`
}

// Registry is an insertion-ordered route table. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	routes map[string]*Route
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{routes: make(map[string]*Route)}
}

// Add registers pattern. For an unseen pattern a route is inserted, with h
// under scope when h is non-nil. For a known pattern only h is merged into
// the route under scope; other scopes and the stored pattern are kept.
// Add reports whether a new route was inserted.
func (r *Registry) Add(pattern *regexp.Regexp, h Handler, scope string) bool {
	if pattern == nil {
		return false
	}
	key := pattern.String()
	scope = NormalizeScope(scope)

	r.mu.Lock()
	defer r.mu.Unlock()

	route, ok := r.routes[key]
	if !ok {
		route = newRoute(pattern)
		r.routes[key] = route
		r.order = append(r.order, key)
	}
	if h != nil {
		route.set(scope, h)
	}
	return !ok
}

// Remove deletes the whole route and reports whether it existed.
func (r *Registry) Remove(pattern *regexp.Regexp) bool {
	if pattern == nil {
		return false
	}
	key := pattern.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[key]; !ok {
		return false
	}
	delete(r.routes, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// RemoveScope deletes the handler of one scope ("" is DefaultScope) and
// reports whether it existed. The route itself is kept.
func (r *Registry) RemoveScope(pattern *regexp.Regexp, scope string) bool {
	if pattern == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	route, ok := r.routes[pattern.String()]
	if !ok {
		return false
	}
	return route.unset(NormalizeScope(scope))
}

// Lookup returns a copy of the route registered for pattern.
func (r *Registry) Lookup(pattern *regexp.Regexp) (*Route, bool) {
	if pattern == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.routes[pattern.String()]
	if !ok {
		return nil, false
	}
	return route.clone(), true
}

// Routes returns copies of all routes in insertion order.
func (r *Registry) Routes() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Route, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.routes[k].clone())
	}
	return out
}

// Len returns the number of routes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot describes every route in insertion order.
func (r *Registry) Snapshot() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RouteInfo, 0, len(r.order))
	for _, k := range r.order {
		route := r.routes[k]
		out = append(out, RouteInfo{Pattern: k, Scopes: route.Scopes()})
	}
	return out
}

// Replace swaps the pattern set for patterns, keeping the handlers of
// routes whose pattern text survives. New patterns are added handler-less.
func (r *Registry) Replace(patterns []*regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()

	routes := make(map[string]*Route, len(patterns))
	order := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == nil {
			continue
		}
		key := p.String()
		if _, dup := routes[key]; dup {
			continue
		}
		if old, ok := r.routes[key]; ok {
			routes[key] = old
		} else {
			routes[key] = newRoute(p)
		}
		order = append(order, key)
	}
	r.routes = routes
	r.order = order
}
