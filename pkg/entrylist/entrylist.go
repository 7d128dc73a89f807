// Package entrylist is the append-only audit log of accepted navigations.
package entrylist

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vango-dev/urlobserver/pkg/navenv"
)

// Entry describes one accepted navigation. Entries are values; the log hands
// out copies.
type Entry struct {
	Status    navenv.Status
	Scope     string
	URL       string
	StartTime time.Duration
}

type entryJSON struct {
	Status    navenv.Status `json:"status" yaml:"status"`
	Scope     string        `json:"scope" yaml:"scope"`
	URL       string        `json:"url" yaml:"url"`
	StartTime float64       `json:"startTime" yaml:"startTime"`
}

// MarshalJSON encodes StartTime in milliseconds.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON decodes the MarshalJSON form. Unknown statuses are rejected.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Status.Valid() {
		return fmt.Errorf("entrylist: unknown status %q", w.Status)
	}
	*e = Entry{
		Status:    w.Status,
		Scope:     w.Scope,
		URL:       w.URL,
		StartTime: time.Duration(w.StartTime * float64(time.Millisecond)),
	}
	return nil
}

// MarshalYAML encodes the same shape as MarshalJSON.
func (e Entry) MarshalYAML() (any, error) {
	return e.wire(), nil
}

func (e Entry) wire() entryJSON {
	return entryJSON{
		Status:    e.Status,
		Scope:     e.Scope,
		URL:       e.URL,
		StartTime: float64(e.StartTime) / float64(time.Millisecond),
	}
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	return fmt.Sprintf("%s %s scope=%q @%s", e.Status, e.URL, e.Scope, e.StartTime)
}

// List is an insertion-ordered log of entries. It is safe for concurrent use.
type List struct {
	mu      sync.RWMutex
	entries []Entry
}

// New returns an empty list.
func New() *List {
	return &List{}
}

// Add appends e.
func (l *List) Add(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns every entry in insertion order.
func (l *List) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesByScope returns the entries recorded with scope.
func (l *List) EntriesByScope(scope string) []Entry {
	return l.filter(func(e Entry) bool { return e.Scope == scope })
}

// EntriesByStatus returns the entries recorded with status.
func (l *List) EntriesByStatus(status navenv.Status) []Entry {
	return l.filter(func(e Entry) bool { return e.Status == status })
}

func (l *List) filter(keep func(Entry) bool) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Entry{}
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Delete removes all entries and returns them.
func (l *List) Delete() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	purged := l.entries
	l.entries = nil
	return purged
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// String implements fmt.Stringer.
func (l *List) String() string {
	return fmt.Sprintf("EntryList(%d)", l.Len())
}
