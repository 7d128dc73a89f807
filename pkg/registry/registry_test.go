package registry

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/urlobserver/pkg/navenv"
)

func allow(context.Context, map[string]string, navenv.Status) (bool, error) { return true, nil }
func deny(context.Context, map[string]string, navenv.Status) (bool, error)  { return false, nil }

func TestAddInsertsOnce(t *testing.T) {
	r := New()
	p := regexp.MustCompile(`^/test$`)

	assert.True(t, r.Add(p, nil, ""))
	assert.False(t, r.Add(regexp.MustCompile(`^/test$`), nil, ""), "same text is the same route")
	assert.Equal(t, 1, r.Len())

	route, ok := r.Lookup(p)
	require.True(t, ok)
	assert.Empty(t, route.Scopes())
}

func TestAddMergesScopes(t *testing.T) {
	r := New()
	p := regexp.MustCompile(`^/test$`)

	r.Add(p, nil, "")
	r.Add(p, deny, "s")
	r.Add(p, allow, "")

	assert.Equal(t, []RouteInfo{{Pattern: `^/test$`, Scopes: []string{"s", DefaultScope}}}, r.Snapshot())

	route, _ := r.Lookup(p)
	h, ok := route.Handler("s")
	require.True(t, ok)
	v, err := h(context.Background(), nil, navenv.StatusClick)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestAddOverwritesOnlyThatScope(t *testing.T) {
	r := New()
	p := regexp.MustCompile(`^/test$`)

	r.Add(p, allow, "a")
	r.Add(p, allow, "b")
	r.Add(p, deny, "a")

	route, _ := r.Lookup(p)
	assert.Equal(t, []string{"a", "b"}, route.Scopes(), "overwrite keeps position")

	h, _ := route.Handler("a")
	v, _ := h(context.Background(), nil, navenv.StatusManual)
	assert.False(t, v)
}

func TestAddKeepsOriginalPattern(t *testing.T) {
	r := New()
	first := regexp.MustCompile(`^/x$`)
	second := regexp.MustCompile(`^/x$`)

	r.Add(first, nil, "")
	r.Add(second, allow, "")

	route, _ := r.Lookup(second)
	assert.Same(t, first, route.Pattern)
}

func TestRemove(t *testing.T) {
	r := New()
	p := regexp.MustCompile(`^/test$`)
	r.Add(p, allow, "")
	r.Add(p, allow, ":test")

	assert.True(t, r.Remove(p))
	assert.Zero(t, r.Len())
	assert.False(t, r.Remove(p))
	assert.False(t, r.Remove(nil))
}

func TestRemoveScope(t *testing.T) {
	tests := []struct {
		name   string
		scope  string
		want   bool
		scopes []string
	}{
		{name: "empty is default", scope: "", want: true, scopes: []string{":test"}},
		{name: "explicit default", scope: DefaultScope, want: true, scopes: []string{":test"}},
		{name: "named scope", scope: ":test", want: true, scopes: []string{DefaultScope}},
		{name: "unknown scope", scope: ":nope", want: false, scopes: []string{DefaultScope, ":test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			p := regexp.MustCompile(`^/test$`)
			r.Add(p, allow, "")
			r.Add(p, allow, ":test")

			assert.Equal(t, tt.want, r.RemoveScope(p, tt.scope))
			assert.Equal(t, []RouteInfo{{Pattern: `^/test$`, Scopes: tt.scopes}}, r.Snapshot())
		})
	}
}

func TestRemoveScopeKeepsEmptyRoute(t *testing.T) {
	r := New()
	p := regexp.MustCompile(`^/test$`)
	r.Add(p, allow, "")

	assert.True(t, r.RemoveScope(p, ""))
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.RemoveScope(regexp.MustCompile(`^/other$`), ""))
}

func TestRoutesInsertionOrderAndCopies(t *testing.T) {
	r := New()
	r.Add(regexp.MustCompile(`^/a`), nil, "")
	r.Add(regexp.MustCompile(`^/b`), nil, "")
	r.Add(regexp.MustCompile(`^/c`), nil, "")
	r.Remove(regexp.MustCompile(`^/b`))

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "^/a", routes[0].Key())
	assert.Equal(t, "^/c", routes[1].Key())

	routes[0].set("x", allow)
	route, _ := r.Lookup(regexp.MustCompile(`^/a`))
	assert.Empty(t, route.Scopes(), "returned routes are copies")
}

func TestReplaceKeepsSurvivingHandlers(t *testing.T) {
	r := New()
	keep := regexp.MustCompile(`^/keep$`)
	r.Add(keep, allow, "s")
	r.Add(regexp.MustCompile(`^/drop$`), allow, "")

	r.Replace([]*regexp.Regexp{regexp.MustCompile(`^/new$`), regexp.MustCompile(`^/keep$`), nil})

	assert.Equal(t, []RouteInfo{
		{Pattern: `^/new$`, Scopes: []string{}},
		{Pattern: `^/keep$`, Scopes: []string{"s"}},
	}, r.Snapshot())
}
