package scenario

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	urlobserver "github.com/vango-dev/urlobserver"
	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/pkg/navenv"
)

const editorScenario = `
name: editor guard
start: https://app.test/
routes:
  - ^/users/(?P<id>[^/]+)$
guards:
  - pattern: ^/users/(?P<id>[^/]+)$
    scope: editor
    allow: false
  - pattern: ^/users/(?P<id>[^/]+)$
    scope: broken
    error: database down
steps:
  - advance: 3s
  - click: {href: /users/1, scope: nav}
  - click: {href: /users/2}
  - update: {url: /users/3, scope: editor}
  - update: {url: /users/4, scope: broken}
  - click: {href: "https://elsewhere.test/"}
  - back: 1
`

func parse(t *testing.T, doc string) *Scenario {
	t.Helper()
	sc, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return sc
}

func TestRun(t *testing.T) {
	res, err := Run(context.Background(), parse(t, editorScenario), nil)
	require.NoError(t, err)

	assert.Equal(t, "editor guard", res.Name)
	require.Len(t, res.Steps, 7)
	assert.Equal(t, "advance", res.Steps[0].Action)
	assert.True(t, res.Steps[1].Intercepted)
	assert.Equal(t, "https://app.test/users/1", res.Steps[1].URL)
	assert.Equal(t, "https://app.test/users/2", res.Steps[2].URL)
	assert.Empty(t, res.Steps[3].Error)
	assert.Equal(t, "https://app.test/users/2", res.Steps[3].URL)
	assert.Contains(t, res.Steps[4].Error, "E200")
	assert.False(t, res.Steps[5].Intercepted)
	assert.Equal(t, "back", res.Steps[6].Action)
	assert.Equal(t, "https://app.test/", res.Steps[6].URL)

	// The second click landed within the dwell time and replaced the first.
	assert.Equal(t, []string{"https://app.test/", "https://app.test/users/2"}, res.History)
	assert.Equal(t, 0, res.Index)

	statuses := make([]navenv.Status, len(res.Entries))
	for i, e := range res.Entries {
		statuses[i] = e.Status
	}
	assert.Equal(t, []navenv.Status{
		navenv.StatusInit, navenv.StatusClick, navenv.StatusClick, navenv.StatusPopState,
	}, statuses)
	assert.Equal(t, "nav", res.Entries[1].Scope)
	assert.Equal(t, 3*time.Second, res.Entries[1].StartTime)

	require.Len(t, res.Events, 4)
	assert.Equal(t, urlobserver.PushStateEvent, res.Events[1].Name)
	assert.Equal(t, map[string]string{"id": "1"}, res.Events[1].Detail.Params)
	assert.Equal(t, urlobserver.PopStateEvent, res.Events[3].Name)
	assert.False(t, res.Events[3].Detail.Found)
}

func TestRunIsDeterministic(t *testing.T) {
	a, err := Run(context.Background(), parse(t, editorScenario), nil)
	require.NoError(t, err)
	b, err := Run(context.Background(), parse(t, editorScenario), nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunExtraPatternsAndOptions(t *testing.T) {
	sc := parse(t, `
steps:
  - click: {href: /a}
  - click: {href: /b}
`)
	res, err := Run(context.Background(), sc,
		[]*regexp.Regexp{regexp.MustCompile(`^/(?P<page>[ab])$`)},
		urlobserver.WithDwellTime(-1))
	require.NoError(t, err)

	assert.Len(t, res.History, 3)
	assert.Equal(t, "b", res.Events[2].Detail.Params["page"])
}

func TestRunFramed(t *testing.T) {
	sc := parse(t, `
framed: true
base_uri: https://app.test/docs/
steps:
  - click: {href: guide, target: _top}
  - click: {href: guide}
`)
	res, err := Run(context.Background(), sc, nil)
	require.NoError(t, err)

	assert.False(t, res.Steps[0].Intercepted)
	assert.True(t, res.Steps[1].Intercepted)
	assert.Equal(t, "https://app.test/docs/guide", res.Steps[1].URL)
}

func TestRunHash(t *testing.T) {
	sc := parse(t, `
steps:
  - hash: "#top"
`)
	res, err := Run(context.Background(), sc, nil)
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	assert.Equal(t, navenv.StatusPopState, res.Entries[1].Status)
	assert.Equal(t, navenv.StatusHashChange, res.Entries[2].Status)
	assert.Equal(t, "https://app.test/#top", res.Entries[2].URL)
}

func TestRunClickScopeMarker(t *testing.T) {
	tests := []struct {
		name      string
		guard     string
		click     string
		wantURL   string
		wantScope []string
	}{
		{
			name:      "absent marker is unscoped",
			click:     "{href: /users/1}",
			wantURL:   "https://app.test/users/1",
			wantScope: []string{"", ""},
		},
		{
			name:      "empty marker clicks in the default scope",
			click:     `{href: /users/1, scope: ""}`,
			wantURL:   "https://app.test/users/1",
			wantScope: []string{"", ":default"},
		},
		{
			name:      "empty marker consults the default-scope guard",
			guard:     "guards:\n  - {pattern: ^/users, allow: false}\n",
			click:     `{href: /users/1, scope: ""}`,
			wantURL:   "https://app.test/",
			wantScope: []string{""},
		},
		{
			name:      "absent marker skips the default-scope guard",
			guard:     "guards:\n  - {pattern: ^/users, allow: false}\n",
			click:     "{href: /users/1}",
			wantURL:   "https://app.test/users/1",
			wantScope: []string{"", ""},
		},
		{
			name:      "named marker",
			guard:     "guards:\n  - {pattern: ^/users, allow: false}\n",
			click:     "{href: /users/1, scope: nav}",
			wantURL:   "https://app.test/users/1",
			wantScope: []string{"", "nav"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.guard + "steps:\n  - advance: 3s\n  - click: " + tt.click + "\n"
			res, err := Run(context.Background(), parse(t, doc), nil)
			require.NoError(t, err)

			require.Len(t, res.Steps, 2)
			assert.True(t, res.Steps[1].Intercepted)
			assert.Equal(t, tt.wantURL, res.Steps[1].URL)

			scopes := make([]string, 0, len(res.Entries))
			for _, e := range res.Entries {
				scopes = append(scopes, e.Scope)
			}
			assert.Equal(t, tt.wantScope, scopes)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{name: "unknown key", doc: "stepz: []\n", code: "E103"},
		{name: "two actions", doc: "steps:\n  - {back: 1, forward: 1}\n", code: "E103"},
		{name: "no action", doc: "steps:\n  - {}\n", code: "E103"},
		{name: "relative start", doc: "start: /home\n", code: "E103"},
		{name: "bad route", doc: "routes: [\"^/(\"]\n", code: "E100"},
		{name: "bad guard", doc: "guards:\n  - pattern: \"(\"\n", code: "E100"},
		{name: "bad duration", doc: "steps:\n  - advance: later\n", code: "E103"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	sc, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultStart, sc.Start)
	assert.Empty(t, sc.Steps)
}
