// Package scenario replays scripted navigation against an in-memory tab.
//
// A scenario is a YAML document:
//
//	name: editor guard
//	start: https://app.test/
//	routes:
//	  - ^/users/(?P<id>[^/]+)$
//	guards:
//	  - pattern: ^/users/(?P<id>[^/]+)$
//	    scope: editor
//	    allow: false
//	steps:
//	  - click: {href: /users/1, scope: nav}
//	  - click: {href: /users/3, scope: ""}
//	  - advance: 3s
//	  - update: {url: /users/2, scope: editor}
//	  - back: 1
//	  - hash: "#top"
//
// The clock only moves on advance steps, so a replay is deterministic.
package scenario

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	urlobserver "github.com/vango-dev/urlobserver"
	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/pkg/entrylist"
	"github.com/vango-dev/urlobserver/pkg/navenv"
)

// DefaultStart is the tab location when a scenario omits start.
const DefaultStart = "https://app.test/"

// Scenario is a scripted session.
type Scenario struct {
	Name    string   `yaml:"name"`
	Start   string   `yaml:"start"`
	BaseURI string   `yaml:"base_uri"`
	Framed  bool     `yaml:"framed"`
	Routes  []string `yaml:"routes"`
	Guards  []Guard  `yaml:"guards"`
	Steps   []Step   `yaml:"steps"`
}

// Guard installs a before-route handler with a fixed answer.
type Guard struct {
	Pattern string `yaml:"pattern"`
	Scope   string `yaml:"scope"`
	Allow   bool   `yaml:"allow"`

	// Error, when set, makes the handler fail with this message.
	Error string `yaml:"error"`
}

// Step is one action. Exactly one field is set.
type Step struct {
	Click   *Click        `yaml:"click,omitempty"`
	Advance time.Duration `yaml:"advance,omitempty"`
	Back    int           `yaml:"back,omitempty"`
	Forward int           `yaml:"forward,omitempty"`
	Go      int           `yaml:"go,omitempty"`
	Hash    *string       `yaml:"hash,omitempty"`
	Update  *Update       `yaml:"update,omitempty"`
}

// Click is a click on an anchor.
type Click struct {
	Href string `yaml:"href"`

	// Scope sets the anchor's scope marker. An empty string is a present
	// but empty marker, which clicks in the default scope; omit it for an
	// unscoped click.
	Scope *string `yaml:"scope"`

	Target   string `yaml:"target"`
	Download bool   `yaml:"download"`
	Button   int    `yaml:"button"`
	Meta     bool   `yaml:"meta"`
	Ctrl     bool   `yaml:"ctrl"`
	Shift    bool   `yaml:"shift"`
}

// Update is a programmatic navigation.
type Update struct {
	URL   string `yaml:"url"`
	Scope string `yaml:"scope"`
}

func (s Step) action() (string, int) {
	name, n := "", 0
	set := func(ok bool, a string) {
		if ok {
			name = a
			n++
		}
	}
	set(s.Click != nil, "click")
	set(s.Advance != 0, "advance")
	set(s.Back != 0, "back")
	set(s.Forward != 0, "forward")
	set(s.Go != 0, "go")
	set(s.Hash != nil, "hash")
	set(s.Update != nil, "update")
	return name, n
}

// Parse decodes a scenario. Unknown keys are rejected.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil && err != io.EOF {
		return nil, errors.New("E103").Wrap(err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the start URL, patterns and steps.
func (sc *Scenario) Validate() error {
	if sc.Start == "" {
		sc.Start = DefaultStart
	}
	if u, err := url.Parse(sc.Start); err != nil || !u.IsAbs() {
		return errors.New("E103").WithDetail("start %q is not an absolute URL", sc.Start)
	}
	for i, p := range sc.Routes {
		if _, err := regexp.Compile(p); err != nil {
			return errors.New("E100").WithDetail("routes[%d] %q", i, p).Wrap(err)
		}
	}
	for i, g := range sc.Guards {
		if _, err := regexp.Compile(g.Pattern); err != nil {
			return errors.New("E100").WithDetail("guards[%d] %q", i, g.Pattern).Wrap(err)
		}
	}
	for i, s := range sc.Steps {
		if _, n := s.action(); n != 1 {
			return errors.New("E103").WithDetail("steps[%d] has %d actions", i, n)
		}
	}
	return nil
}

// StepResult reports what one step did.
type StepResult struct {
	Action string `json:"action" yaml:"action"`

	// Intercepted is set for clicks the observer took over.
	Intercepted bool   `json:"intercepted,omitempty" yaml:"intercepted,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	URL         string `json:"url" yaml:"url"`
}

// Event is a custom event dispatched during the replay.
type Event struct {
	Name   string                 `json:"name" yaml:"name"`
	Detail urlobserver.RouteEvent `json:"detail" yaml:"detail"`
}

// Result is the observable outcome of a replay.
type Result struct {
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Steps   []StepResult      `json:"steps" yaml:"steps"`
	Entries []entrylist.Entry `json:"entries" yaml:"entries"`
	History []string          `json:"history" yaml:"history"`
	Index   int               `json:"index" yaml:"index"`
	Events  []Event           `json:"events" yaml:"events"`
}

// Run replays sc. Patterns are observed in addition to sc.Routes. Failed
// update steps are reported in the result, not returned.
func Run(ctx context.Context, sc *Scenario, patterns []*regexp.Regexp, opts ...urlobserver.Option) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	env := navenv.NewMemory(sc.Start)
	env.SetTopLevel(!sc.Framed)
	if sc.BaseURI != "" {
		if err := env.SetBaseURI(sc.BaseURI); err != nil {
			return nil, errors.New("E103").WithDetail("base_uri %q", sc.BaseURI).Wrap(err)
		}
	}

	all := append([]*regexp.Regexp(nil), patterns...)
	for _, p := range sc.Routes {
		all = append(all, regexp.MustCompile(p))
	}

	obs := urlobserver.New(env, opts...)
	if err := obs.Observe(ctx, all); err != nil {
		return nil, err
	}
	defer obs.Disconnect()

	for _, g := range sc.Guards {
		obs.Add(urlobserver.RouteOption{
			Pattern: regexp.MustCompile(g.Pattern),
			Scope:   g.Scope,
			Handler: func(context.Context, map[string]string, navenv.Status) (bool, error) {
				if g.Error != "" {
					return false, fmt.Errorf("%s", g.Error)
				}
				return g.Allow, nil
			},
		})
	}

	res := &Result{Name: sc.Name, Steps: make([]StepResult, 0, len(sc.Steps))}
	for _, s := range sc.Steps {
		res.Steps = append(res.Steps, apply(ctx, env, obs, s))
	}

	res.Entries = obs.EntryList().Entries()
	res.History = env.History()
	res.Index = env.Index()
	for _, d := range env.Dispatched() {
		ev := Event{Name: d.Name}
		if detail, ok := d.Detail.(urlobserver.RouteEvent); ok {
			ev.Detail = detail
		}
		res.Events = append(res.Events, ev)
	}
	return res, nil
}

func apply(ctx context.Context, env *navenv.Memory, obs *urlobserver.Observer, s Step) StepResult {
	name, _ := s.action()
	r := StepResult{Action: name}

	switch {
	case s.Click != nil:
		r.Intercepted = env.Click(s.Click.event())
	case s.Advance != 0:
		env.Advance(s.Advance)
	case s.Back != 0:
		env.Go(-s.Back)
	case s.Forward != 0:
		env.Go(s.Forward)
	case s.Go != 0:
		env.Go(s.Go)
	case s.Hash != nil:
		env.SetHash(*s.Hash)
	case s.Update != nil:
		if err := obs.UpdateHistory(ctx, s.Update.URL, s.Update.Scope); err != nil {
			r.Error = err.Error()
		}
	}

	r.URL = env.Location().String()
	return r
}

func (c *Click) event() *navenv.ClickEvent {
	a := navenv.Anchor(c.Href)
	if c.Scope != nil {
		a.SetAttr("scope", *c.Scope)
	}
	if c.Target != "" {
		a.SetAttr("target", c.Target)
	}
	if c.Download {
		a.SetAttr("download", "")
	}
	ev := navenv.NewClick(a)
	ev.Button = c.Button
	ev.MetaKey = c.Meta
	ev.CtrlKey = c.Ctrl
	ev.ShiftKey = c.Shift
	return ev
}
