package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/urlobserver/internal/config"
	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/internal/scenario"
	"github.com/vango-dev/urlobserver/pkg/protocol"
)

const testConfig = `
observer:
  dwell_time: 1s
  debug: true
routes:
  - name: home
    pattern: ^/$
  - name: user
    pattern: ^/users/(?P<id>[^/]+)$
  - name: users
    pattern: ^/users
logging:
  level: error
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMatchCommand(t *testing.T) {
	cfgPath := writeTemp(t, "urlobserver.yaml", testConfig)

	out, err := execute(t, "match", "-c", cfgPath, "/users/42", "/users/42/edit", "/nowhere")
	require.NoError(t, err)

	var results []matchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)

	assert.True(t, results[0].Found)
	assert.Equal(t, "user", results[0].Name)
	assert.Equal(t, map[string]string{"id": "42"}, results[0].Params)

	// Only the prefix route matches a nested path.
	assert.True(t, results[1].Found)
	assert.Equal(t, "users", results[1].Name)
	assert.Empty(t, results[1].Params)

	assert.False(t, results[2].Found)
	assert.Empty(t, results[2].Pattern)
	assert.NotNil(t, results[2].Params)
}

func TestMatchCommandYAML(t *testing.T) {
	cfgPath := writeTemp(t, "urlobserver.yaml", testConfig)

	out, err := execute(t, "match", "-c", cfgPath, "--format", "yaml", "/")
	require.NoError(t, err)

	var results []matchResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "home", results[0].Name)
}

func TestMatchCommandErrors(t *testing.T) {
	_, err := execute(t, "match")
	assert.Error(t, err)

	_, err = execute(t, "match", "-c", writeTemp(t, "bad.yaml", "routes:\n  - pattern: \"(\"\n"), "/")
	assert.True(t, errors.HasCode(err, "E100"))

	_, err = execute(t, "match", "--format", "xml", "/")
	assert.ErrorContains(t, err, "unknown format")
}

func TestReplayCommand(t *testing.T) {
	cfgPath := writeTemp(t, "urlobserver.yaml", testConfig)
	scPath := writeTemp(t, "session.yaml", `
steps:
  - advance: 2s
  - click: {href: /users/7, scope: nav}
  - back: 1
`)

	out, err := execute(t, "replay", "-c", cfgPath, scPath)
	require.NoError(t, err)

	var res struct {
		Entries []struct {
			Status string  `json:"status"`
			Scope  string  `json:"scope"`
			URL    string  `json:"url"`
			Start  float64 `json:"startTime"`
		} `json:"entries"`
		History []string `json:"history"`
		Events  []struct {
			Name   string `json:"name"`
			Detail struct {
				Found  bool              `json:"found"`
				Params map[string]string `json:"params"`
			} `json:"detail"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	require.Len(t, res.Entries, 3)
	assert.Equal(t, "click", res.Entries[1].Status)
	assert.Equal(t, "nav", res.Entries[1].Scope)
	assert.Equal(t, 2000.0, res.Entries[1].Start)
	assert.Equal(t, "popstate", res.Entries[2].Status)
	assert.Equal(t, []string{"https://app.test/", "https://app.test/users/7"}, res.History)
	require.Len(t, res.Events, 3)
	assert.Equal(t, "7", res.Events[1].Detail.Params["id"])
	assert.True(t, res.Events[2].Detail.Found)
}

func TestReplayCommandYAML(t *testing.T) {
	scPath := writeTemp(t, "session.yaml", "steps:\n  - hash: \"#x\"\n")

	out, err := execute(t, "replay", scPath, "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "status: hashchange")
	assert.Contains(t, out, "history:")
}

func TestReplayCommandErrors(t *testing.T) {
	_, err := execute(t, "replay", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.HasCode(err, "E103"))

	_, err = execute(t, "replay", writeTemp(t, "s.yaml", "steps:\n  - {}\n"))
	assert.True(t, errors.HasCode(err, "E103"))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "urlobserver dev")
	assert.Contains(t, out, "Go version")
}

func TestCodesCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantCodes []string
		wantErr   string
	}{
		{name: "all codes", args: []string{"codes"}, wantCodes: errors.GetAllCodes()},
		{name: "selected codes", args: []string{"codes", "E202", "E103"}, wantCodes: []string{"E202", "E103"}},
		{name: "unknown code", args: []string{"codes", "E999"}, wantErr: "unknown error code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			var infos []codeInfo
			require.NoError(t, json.Unmarshal([]byte(out), &infos))
			got := make([]string, 0, len(infos))
			for _, info := range infos {
				got = append(got, info.Code)
				assert.NotEmpty(t, info.Message)
				assert.NotEmpty(t, info.Category)
			}
			assert.Equal(t, tt.wantCodes, got)
		})
	}

	out, err := execute(t, "codes", "E103", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "message: Invalid scenario")
	assert.Contains(t, out, "category: config")
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		asJSON bool
		want   map[string]string
		text   string
	}{
		{
			name:   "coded error as JSON",
			err:    errors.New("E202").WithDetail("%q", "/%zz"),
			asJSON: true,
			want:   map[string]string{"code": "E202", "category": "navigation", "message": "Invalid navigation URL", "detail": `"/%zz"`},
		},
		{
			name:   "wrapped coded error as JSON",
			err:    fmt.Errorf("replay: %w", errors.New("E103")),
			asJSON: true,
			want:   map[string]string{"code": "E103", "category": "config", "message": "Invalid scenario"},
		},
		{
			name:   "plain error as JSON",
			err:    stderrors.New("unknown format"),
			asJSON: true,
			want:   map[string]string{"message": "unknown format"},
		},
		{name: "plain error as text", err: stderrors.New("unknown format"), text: "unknown format"},
		{name: "coded error as text", err: errors.New("E103"), text: "Invalid scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reportError(&buf, tt.err, tt.asJSON)

			if !tt.asJSON {
				assert.Contains(t, buf.String(), tt.text)
				return
			}
			assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
			var got map[string]string
			require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
		})
	}
}

func testServer(t *testing.T, yamlCfg string) (*server, *httptest.Server) {
	t.Helper()
	cfg, err := config.Load(writeTemp(t, "urlobserver.yaml", yamlCfg))
	require.NoError(t, err)

	s, err := newServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestServeHealthzAndRoutes(t *testing.T) {
	_, srv := testServer(t, testConfig)

	var health map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 3.0, health["routes"])

	var routes []routeInfo
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/routes", &routes))
	require.Len(t, routes, 3)
	assert.Equal(t, "user", routes[1].Name)
	assert.Equal(t, `^/users/(?P<id>[^/]+)$`, routes[1].Pattern)
}

func TestServeRoutesHiddenWithoutDebug(t *testing.T) {
	_, srv := testServer(t, "routes:\n  - pattern: ^/$\n")
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/routes", nil))
}

func TestServeReload(t *testing.T) {
	s, srv := testServer(t, testConfig)

	next, err := config.Load(writeTemp(t, "next.yaml", "observer:\n  debug: true\nserver:\n  path: /other\nroutes:\n  - {name: about, pattern: ^/about$}\n"))
	require.NoError(t, err)
	s.reload(next)

	var routes []routeInfo
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/routes", &routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "about", routes[0].Name)

	// Listen settings survive a reload.
	assert.Equal(t, config.DefaultPath, s.config().Server.Path)
}

func TestServeWebSocket(t *testing.T) {
	_, srv := testServer(t, testConfig)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + config.DefaultPath
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	hello, err := protocol.Encode(protocol.FrameHello, protocol.Hello{Href: "https://app.test/users/1", Top: true})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, hello))

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	f, err := protocol.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.FrameReplace, f.Type)

	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	f, err = protocol.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, protocol.FrameEvent, f.Type)

	var ev struct {
		Name   string `json:"name"`
		Detail struct {
			Params map[string]string `json:"params"`
		} `json:"detail"`
	}
	require.NoError(t, f.Into(&ev))
	assert.Equal(t, "1", ev.Detail.Params["id"])
}

func TestScenarioRunsWithConfigRoutes(t *testing.T) {
	cfg, err := config.Load(writeTemp(t, "urlobserver.yaml", testConfig))
	require.NoError(t, err)
	patterns, err := cfg.Patterns()
	require.NoError(t, err)

	sc, err := scenario.Parse(strings.NewReader("steps: []\n"))
	require.NoError(t, err)
	res, err := scenario.Run(context.Background(), sc, patterns)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.True(t, res.Events[0].Detail.Found)
}
