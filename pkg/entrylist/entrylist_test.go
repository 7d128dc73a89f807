package entrylist

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/urlobserver/pkg/navenv"
)

var (
	initEntry = Entry{Status: navenv.StatusInit, Scope: ":default", URL: "http://localhost:3000/", StartTime: time.Millisecond}
	clicks    = []Entry{
		{Status: navenv.StatusClick, Scope: "", URL: "http://localhost:3000/a", StartTime: 2 * time.Millisecond},
		{Status: navenv.StatusClick, Scope: ":s", URL: "http://localhost:3000/b", StartTime: 3 * time.Millisecond},
	}
)

func filled() *List {
	l := New()
	l.Add(initEntry)
	for _, e := range clicks {
		l.Add(e)
	}
	return l
}

func TestEmptyList(t *testing.T) {
	l := New()
	assert.Empty(t, l.Entries())
	assert.Equal(t, "EntryList(0)", l.String())
}

func TestEntriesKeepOrder(t *testing.T) {
	l := filled()
	assert.Equal(t, append([]Entry{initEntry}, clicks...), l.Entries())
	assert.Equal(t, 3, l.Len())
}

func TestEntriesByScope(t *testing.T) {
	l := filled()
	assert.Equal(t, []Entry{initEntry}, l.EntriesByScope(":default"))
	assert.Equal(t, []Entry{clicks[0]}, l.EntriesByScope(""))
	assert.Empty(t, l.EntriesByScope(":missing"))
}

func TestEntriesByStatus(t *testing.T) {
	l := filled()
	assert.Equal(t, clicks, l.EntriesByStatus(navenv.StatusClick))
	assert.Empty(t, l.EntriesByStatus(navenv.StatusPopState))
}

func TestEntriesAreCopies(t *testing.T) {
	l := filled()
	got := l.Entries()
	got[0].URL = "mutated"
	assert.Equal(t, initEntry, l.Entries()[0])
}

func TestDelete(t *testing.T) {
	l := filled()
	purged := l.Delete()
	assert.Len(t, purged, 3)
	assert.Empty(t, l.Entries())
	assert.Empty(t, l.Delete())
}

func TestEntryJSON(t *testing.T) {
	e := Entry{Status: navenv.StatusManual, Scope: ":x", URL: "https://app.test/a", StartTime: 1500 * time.Microsecond}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"manual","scope":":x","url":"https://app.test/a","startTime":1.5}`, string(data))

	var back Entry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e, back)
}

func TestEntryJSONStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{name: "init", status: "init"},
		{name: "click", status: "click"},
		{name: "hashchange", status: "hashchange"},
		{name: "popstate", status: "popstate"},
		{name: "manual", status: "manual"},
		{name: "unknown", status: "reload", wantErr: true},
		{name: "empty", status: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := `{"status":"` + tt.status + `","scope":"","url":"https://app.test/","startTime":0}`
			var e Entry
			err := json.Unmarshal([]byte(data), &e)
			if tt.wantErr {
				assert.ErrorContains(t, err, "unknown status")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, navenv.Status(tt.status), e.Status)
		})
	}
}
