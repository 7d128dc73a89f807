// Package routematch resolves a path against a route table.
//
// Every pattern is tested against the path. Among the patterns that match,
// the one whose first match leaves the shortest unmatched residual wins, so
// a longer, more specific match beats a shorter prefix match. A match that
// consumes the whole path is accepted without looking further. Ties keep the
// route inserted first.
package routematch

import (
	"regexp"

	"github.com/vango-dev/urlobserver/pkg/registry"
)

// Result is the outcome of Find.
type Result struct {
	Found  bool              `json:"found"`
	Params map[string]string `json:"params"`

	// Route is the winning route, nil when nothing matched.
	Route *registry.Route `json:"-"`
}

// Pattern returns the winning pattern text, or "".
func (r Result) Pattern() string {
	if r.Route == nil {
		return ""
	}
	return r.Route.Key()
}

// ParamExtractor derives captured parameters from a path and the pattern
// that matched it.
type ParamExtractor interface {
	Extract(path string, pattern *regexp.Regexp) map[string]string
}

// ParamExtractorFunc adapts a function to ParamExtractor.
type ParamExtractorFunc func(path string, pattern *regexp.Regexp) map[string]string

// Extract implements ParamExtractor.
func (f ParamExtractorFunc) Extract(path string, pattern *regexp.Regexp) map[string]string {
	return f(path, pattern)
}

// NamedGroups is the default extractor. It returns the named capture groups
// that took part in the first match of pattern against path.
var NamedGroups ParamExtractor = ParamExtractorFunc(namedGroups)

func namedGroups(path string, pattern *regexp.Regexp) map[string]string {
	params := make(map[string]string)
	loc := pattern.FindStringSubmatchIndex(path)
	if loc == nil {
		return params
	}
	for i, name := range pattern.SubexpNames() {
		if i == 0 || name == "" || loc[2*i] < 0 {
			continue
		}
		params[name] = path[loc[2*i]:loc[2*i+1]]
	}
	return params
}

// Residual returns how many bytes of path are left once the first match of
// pattern is removed, and whether pattern matched at all.
func Residual(pattern *regexp.Regexp, path string) (int, bool) {
	loc := pattern.FindStringIndex(path)
	if loc == nil {
		return 0, false
	}
	return len(path) - (loc[1] - loc[0]), true
}

// Find returns the best route for path. A nil extractor means NamedGroups.
func Find(routes []*registry.Route, path string, extractor ParamExtractor) Result {
	var (
		best     *registry.Route
		bestLeft int
	)
	for _, route := range routes {
		left, ok := Residual(route.Pattern, path)
		if !ok {
			continue
		}
		if best == nil || left < bestLeft {
			best, bestLeft = route, left
		}
		if left == 0 {
			break
		}
	}

	if best == nil {
		return Result{Params: map[string]string{}}
	}

	if extractor == nil {
		extractor = NamedGroups
	}
	params := extractor.Extract(path, best.Pattern)
	if params == nil {
		params = map[string]string{}
	}
	return Result{Found: true, Params: params, Route: best}
}
