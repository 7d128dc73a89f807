package urlobserver

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/vango-dev/urlobserver/pkg/navenv"
	"github.com/vango-dev/urlobserver/pkg/registry"
)

// scopeMarker is the anchor attribute or property naming the caller scope.
const scopeMarker = "scope"

// onClick intercepts same-origin anchor clicks. Anything it does not
// recognize falls through to the browser untouched.
func (o *Observer) onClick(ctx context.Context, ev navenv.Event) {
	click, ok := ev.(*navenv.ClickEvent)
	if !ok {
		return
	}
	if click.DefaultPrevented() || click.Button != 0 || click.MetaKey || click.CtrlKey || click.ShiftKey {
		return
	}

	anchor := effectiveAnchor(click)
	if anchor == nil || anchor.HasAttr("download") {
		return
	}
	switch target, _ := anchor.Attr("target"); target {
	case "_blank":
		return
	case "_top", "_parent":
		if !o.env.IsTopLevel() {
			return
		}
	}

	href, ok := anchor.Attr("href")
	if !ok {
		return
	}
	ref, err := url.Parse(href)
	if err != nil {
		return
	}
	base := o.env.BaseURI()
	if base == nil {
		base = o.env.Location()
	}
	dest := base.ResolveReference(ref)
	if !navenv.SameOrigin(dest, o.env.Location()) {
		return
	}

	click.PreventDefault()

	if err := o.navigate(ctx, navRequest{
		status: navenv.StatusClick,
		scope:  anchorScope(anchor),
		url:    dest,
	}); err != nil {
		o.log().Warn("click navigation failed", "url", dest.String(), "error", err)
	}
}

// effectiveAnchor returns the target if it is an anchor, else its closest
// anchor ancestor, else the first anchor on the propagation path.
func effectiveAnchor(ev *navenv.ClickEvent) *navenv.Element {
	if a := ev.Target.Closest(); a != nil {
		return a
	}
	for _, el := range ev.Path() {
		if el.IsAnchor() {
			return el
		}
	}
	return nil
}

// anchorScope reads the scope marker. A present but empty marker means the
// default scope; no marker means no scope.
func anchorScope(a *navenv.Element) string {
	prop, hasProp := a.Prop(scopeMarker)
	attr, hasAttr := a.Attr(scopeMarker)
	switch {
	case prop != "":
		return prop
	case hasProp || hasAttr:
		return registry.NormalizeScope(attr)
	}
	return ""
}

func (o *Observer) onPopState(ctx context.Context, ev navenv.Event) {
	var scope string
	if pop, ok := ev.(*navenv.PopStateEvent); ok {
		scope = pop.State.Scope()
	}
	if err := o.navigate(ctx, navRequest{
		status:    navenv.StatusPopState,
		scope:     scope,
		url:       o.env.Location(),
		skipCheck: true,
	}); err != nil {
		o.log().Warn("popstate navigation failed", "error", err)
	}
}

// onHashChange keeps the scope of the last accepted navigation, since a
// fragment change carries no state of its own.
func (o *Observer) onHashChange(ctx context.Context, _ navenv.Event) {
	o.mu.Lock()
	scope := o.lastScope
	o.mu.Unlock()

	if err := o.navigate(ctx, navRequest{
		status:    navenv.StatusHashChange,
		scope:     scope,
		url:       o.env.Location(),
		skipCheck: true,
	}); err != nil {
		o.log().Warn("hashchange navigation failed", "error", err)
	}
}

func (o *Observer) log() *slog.Logger {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.logger.With("observer", o.id)
}
