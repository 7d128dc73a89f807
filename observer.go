package urlobserver

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/pkg/entrylist"
	"github.com/vango-dev/urlobserver/pkg/navenv"
	"github.com/vango-dev/urlobserver/pkg/registry"
	"github.com/vango-dev/urlobserver/pkg/routematch"
)

// archiveTimeout bounds the archive upload run by Disconnect.
const archiveTimeout = 10 * time.Second

// RouteOption describes a route to add, optionally with a scoped
// before-route handler.
type RouteOption struct {
	Pattern *regexp.Regexp
	Handler registry.Handler
	Scope   string
}

// Observer tracks navigation in one environment. It owns its route
// registry and entry list; neither is shared with other observers.
//
// An Observer is safe for concurrent use.
type Observer struct {
	env     navenv.Environment
	routes  *registry.Registry
	entries *entrylist.List

	// commitMu orders commits; mu guards the fields below and is never
	// held while the environment mutates history.
	commitMu sync.Mutex

	mu            sync.Mutex
	connected     bool
	lastChangedAt time.Duration
	lastScope     string
	removers      []func()

	// guarded by mu once Observe has run
	id          string
	dwellTime   time.Duration
	debug       bool
	spaceAsPlus bool
	extractor   routematch.ParamExtractor
	callback    Callback
	logger      *slog.Logger
	middleware  []Middleware
	archiver    Archiver

	// middleware from New; Observe rebuilds the chain from it
	baseMiddleware []Middleware
}

// New returns a disconnected Observer bound to env.
func New(env navenv.Environment, opts ...Option) *Observer {
	o := &Observer{
		env:           env,
		routes:        registry.New(),
		entries:       entrylist.New(),
		lastChangedAt: -time.Millisecond,
		dwellTime:     DefaultDwellTime,
		spaceAsPlus:   true,
		extractor:     routematch.NamedGroups,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.baseMiddleware = o.middleware
	return o
}

// Observe registers patterns, attaches the click, popstate and hashchange
// listeners and records the init navigation for the current location.
// Calling Observe on a connected observer does nothing. Middleware passed to
// an earlier Observe is dropped; middleware passed to New is kept.
func (o *Observer) Observe(ctx context.Context, patterns []*regexp.Regexp, opts ...Option) error {
	o.mu.Lock()
	if o.connected {
		o.mu.Unlock()
		return nil
	}
	for _, p := range patterns {
		o.routes.Add(p, nil, "")
	}
	o.middleware = append([]Middleware(nil), o.baseMiddleware...)
	for _, opt := range opts {
		opt(o)
	}
	o.connected = true
	o.removers = []func(){
		o.env.AddEventListener(navenv.EventClick, o.onClick),
		o.env.AddEventListener(navenv.EventHashChange, o.onHashChange),
		o.env.AddEventListener(navenv.EventPopState, o.onPopState),
	}
	logger := o.logger.With("observer", o.id)
	o.mu.Unlock()

	logger.Debug("observer connected", "routes", o.routes.Len())

	return o.navigate(ctx, navRequest{
		status:    navenv.StatusInit,
		url:       o.env.Location(),
		skipCheck: true,
	})
}

// Disconnect detaches the listeners and purges the entry list. The purged
// entries are handed to the archiver, if one is configured. Calling
// Disconnect on a disconnected observer does nothing.
func (o *Observer) Disconnect() {
	o.mu.Lock()
	if !o.connected {
		o.mu.Unlock()
		return
	}
	o.connected = false
	removers := o.removers
	o.removers = nil
	archiver, id, logger := o.archiver, o.id, o.logger
	o.mu.Unlock()

	for _, remove := range removers {
		remove()
	}

	purged := o.entries.Delete()
	logger.Debug("observer disconnected", "observer", id, "entries", len(purged))

	if archiver == nil || len(purged) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := archiver.Archive(ctx, id, purged); err != nil {
		logger.Error("archive audit trail", "observer", id, "error", errors.FromError(err, "E400"))
	}
}

// Connected reports whether Observe has run without a later Disconnect.
func (o *Observer) Connected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connected
}

// ID returns the identifier set with WithID.
func (o *Observer) ID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.id
}

// Add registers a route or merges a scoped handler into an existing one.
// A handler already registered for the same scope is replaced. Add reports
// whether a new route was inserted.
func (o *Observer) Add(opt RouteOption) bool {
	if opt.Handler != nil {
		scope := registry.NormalizeScope(opt.Scope)
		if route, ok := o.routes.Lookup(opt.Pattern); ok {
			if _, dup := route.Handler(scope); dup {
				o.log().Debug("replacing before-route handler", "pattern", route.Key(), "scope", scope)
			}
		}
	}
	return o.routes.Add(opt.Pattern, opt.Handler, opt.Scope)
}

// Remove deletes the route for pattern. With a scope argument only that
// scope's handler is deleted ("" means the default scope) and the route
// stays. It reports whether anything was removed.
func (o *Observer) Remove(pattern *regexp.Regexp, scope ...string) bool {
	if len(scope) == 0 {
		return o.routes.Remove(pattern)
	}
	return o.routes.RemoveScope(pattern, scope[0])
}

// ReloadRoutes replaces the pattern set, keeping handlers of surviving
// patterns.
func (o *Observer) ReloadRoutes(patterns []*regexp.Regexp) {
	o.routes.Replace(patterns)
}

// Match resolves path against the routes. An empty path means the current
// location.
func (o *Observer) Match(path string) routematch.Result {
	if path == "" {
		path = o.env.Location().EscapedPath()
	}
	o.mu.Lock()
	x := o.extractor
	o.mu.Unlock()
	return routematch.Find(o.routes.Routes(), path, x)
}

// TakeRecords returns the entries recorded since Observe. The entry list is
// not cleared; only Disconnect clears it.
func (o *Observer) TakeRecords() []entrylist.Entry {
	return o.entries.Entries()
}

// EntryList gives read access to the audit log.
func (o *Observer) EntryList() *entrylist.List {
	return o.entries
}

// RoutesForDebug describes the route table when the observer was configured
// with WithDebug(true), and returns nil otherwise.
func (o *Observer) RoutesForDebug() []registry.RouteInfo {
	o.mu.Lock()
	debug := o.debug
	o.mu.Unlock()
	if !debug {
		return nil
	}
	return o.routes.Snapshot()
}

// UpdateHistory navigates to pathname as a manual navigation. The same-URL
// check is skipped. When scope is non-empty the scope's before-route
// handler on the matching route must approve. A vetoed navigation returns
// nil; a failing handler returns its error.
func (o *Observer) UpdateHistory(ctx context.Context, pathname, scope string) error {
	ref, err := url.Parse(pathname)
	if err != nil {
		return errors.New("E202").WithDetail("%q", pathname).Wrap(err)
	}
	loc := o.env.Location()
	origin := &url.URL{Scheme: loc.Scheme, Host: loc.Host}
	return o.navigate(ctx, navRequest{
		status:    navenv.StatusManual,
		scope:     scope,
		url:       origin.ResolveReference(ref),
		skipCheck: true,
	})
}
