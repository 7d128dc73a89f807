package navenv

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// HistoryEntry is one slot of the emulated session history.
type HistoryEntry struct {
	URL   string
	State State
}

// DispatchedEvent records a custom event fired through Dispatch.
type DispatchedEvent struct {
	Name   string
	Detail any
}

type registration struct {
	id int
	fn Listener
}

// Memory is an in-process Environment emulating a single browser tab.
//
// Time does not pass on its own: call Advance to move the clock.
type Memory struct {
	mu sync.Mutex

	history []HistoryEntry
	index   int
	base    *url.URL
	top     bool
	now     time.Duration

	listeners map[EventKind][]registration
	nextID    int

	dispatched  []DispatchedEvent
	subscribers map[string][]func(detail any)

	pushes   int
	replaces int
}

// NewMemory returns a top-level environment whose only history entry is
// startURL. It panics if startURL is not an absolute URL.
func NewMemory(startURL string) *Memory {
	u, err := url.Parse(startURL)
	if err != nil || !u.IsAbs() {
		panic(fmt.Sprintf("navenv: invalid start URL %q", startURL))
	}
	return &Memory{
		history:     []HistoryEntry{{URL: u.String()}},
		top:         true,
		listeners:   make(map[EventKind][]registration),
		subscribers: make(map[string][]func(detail any)),
	}
}

// Location implements Environment.
func (m *Memory) Location() *url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locationLocked()
}

func (m *Memory) locationLocked() *url.URL {
	u, _ := url.Parse(m.history[m.index].URL)
	return u
}

// BaseURI implements Environment.
func (m *Memory) BaseURI() *url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return nil
	}
	b := *m.base
	return &b
}

// SetBaseURI emulates a <base href> element. Empty clears it.
func (m *Memory) SetBaseURI(raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if raw == "" {
		m.base = nil
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() {
		u = m.locationLocked().ResolveReference(u)
	}
	m.base = u
	return nil
}

// IsTopLevel implements Environment.
func (m *Memory) IsTopLevel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.top
}

// SetTopLevel marks the tab as embedded (false) or top-level (true).
func (m *Memory) SetTopLevel(top bool) {
	m.mu.Lock()
	m.top = top
	m.mu.Unlock()
}

// PushState implements Environment. Forward entries are discarded.
func (m *Memory) PushState(state State, rawURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history[:m.index+1], HistoryEntry{URL: m.resolveLocked(rawURL), State: state})
	m.index = len(m.history) - 1
	m.pushes++
}

// ReplaceState implements Environment.
func (m *Memory) ReplaceState(state State, rawURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[m.index] = HistoryEntry{URL: m.resolveLocked(rawURL), State: state}
	m.replaces++
}

func (m *Memory) resolveLocked(rawURL string) string {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return m.history[m.index].URL
	}
	return m.locationLocked().ResolveReference(ref).String()
}

// AddEventListener implements Environment.
func (m *Memory) AddEventListener(kind EventKind, l Listener) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[kind] = append(m.listeners[kind], registration{id: id, fn: l})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		regs := m.listeners[kind]
		for i, r := range regs {
			if r.id == id {
				m.listeners[kind] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of listeners attached for kind.
func (m *Memory) ListenerCount(kind EventKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners[kind])
}

// Dispatch implements Environment.
func (m *Memory) Dispatch(name string, detail any) {
	m.mu.Lock()
	m.dispatched = append(m.dispatched, DispatchedEvent{Name: name, Detail: detail})
	subs := append([]func(any){}, m.subscribers[name]...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(detail)
	}
}

// Subscribe calls fn for every custom event named name.
func (m *Memory) Subscribe(name string, fn func(detail any)) {
	m.mu.Lock()
	m.subscribers[name] = append(m.subscribers[name], fn)
	m.mu.Unlock()
}

// Dispatched returns the custom events fired so far.
func (m *Memory) Dispatched() []DispatchedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DispatchedEvent(nil), m.dispatched...)
}

// Now implements Environment.
func (m *Memory) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Memory) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}

// History returns the URLs of all history entries.
func (m *Memory) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.history))
	for i, h := range m.history {
		out[i] = h.URL
	}
	return out
}

// Index returns the position of the current entry in History.
func (m *Memory) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Counts returns the number of PushState and ReplaceState calls.
func (m *Memory) Counts() (pushes, replaces int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushes, m.replaces
}

// Click dispatches ev to click listeners and reports whether the default
// action was prevented.
func (m *Memory) Click(ev *ClickEvent) bool {
	m.fire(context.Background(), ev)
	return ev.DefaultPrevented()
}

// Go traverses history by delta and fires popstate, plus hashchange when
// only the fragment differs. Out of range deltas are ignored.
func (m *Memory) Go(delta int) {
	m.mu.Lock()
	target := m.index + delta
	if delta == 0 || target < 0 || target >= len(m.history) {
		m.mu.Unlock()
		return
	}
	old := m.history[m.index]
	m.index = target
	cur := m.history[m.index]
	m.mu.Unlock()

	m.fire(context.Background(), &PopStateEvent{State: cur.State})
	if fragmentOnly(old.URL, cur.URL) {
		m.fire(context.Background(), &HashChangeEvent{OldURL: old.URL, NewURL: cur.URL})
	}
}

// Back is Go(-1).
func (m *Memory) Back() { m.Go(-1) }

// Forward is Go(1).
func (m *Memory) Forward() { m.Go(1) }

// SetHash performs a fragment navigation the way assigning location.hash
// does: a new history entry, then popstate and hashchange.
func (m *Memory) SetHash(hash string) {
	m.mu.Lock()
	loc := m.locationLocked()
	oldURL := loc.String()
	loc.Fragment = ""
	loc.RawFragment = ""
	next := loc.String()
	if hash != "" && hash != "#" {
		if hash[0] != '#' {
			hash = "#" + hash
		}
		next += hash
	}
	if next == oldURL {
		m.mu.Unlock()
		return
	}
	m.history = append(m.history[:m.index+1], HistoryEntry{URL: next})
	m.index = len(m.history) - 1
	m.mu.Unlock()

	m.fire(context.Background(), &PopStateEvent{})
	m.fire(context.Background(), &HashChangeEvent{OldURL: oldURL, NewURL: next})
}

func (m *Memory) fire(ctx context.Context, ev Event) {
	m.mu.Lock()
	regs := append([]registration(nil), m.listeners[ev.Kind()]...)
	m.mu.Unlock()

	for _, r := range regs {
		r.fn(ctx, ev)
	}
}

func fragmentOnly(a, b string) bool {
	ua, err1 := url.Parse(a)
	ub, err2 := url.Parse(b)
	if err1 != nil || err2 != nil {
		return false
	}
	if ua.EscapedFragment() == ub.EscapedFragment() {
		return false
	}
	ua.Fragment, ua.RawFragment = "", ""
	ub.Fragment, ub.RawFragment = "", ""
	return ua.String() == ub.String()
}

var _ Environment = (*Memory)(nil)
