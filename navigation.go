package urlobserver

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"

	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/pkg/entrylist"
	"github.com/vango-dev/urlobserver/pkg/navenv"
	"github.com/vango-dev/urlobserver/pkg/routematch"
	"github.com/vango-dev/urlobserver/pkg/urlnorm"
)

type navRequest struct {
	status    navenv.Status
	scope     string
	url       *url.URL
	skipCheck bool
}

// navigate runs one navigation attempt through the middleware chain.
func (o *Observer) navigate(ctx context.Context, req navRequest) error {
	o.mu.Lock()
	mw := o.middleware
	id := o.id
	o.mu.Unlock()

	nav := &Navigation{
		ObserverID: id,
		Status:     req.status,
		Scope:      req.scope,
		URL:        req.url.String(),
	}
	run := chain(mw, nav, func(ctx context.Context) error {
		err := o.urlChanged(ctx, nav, req)
		if err != nil {
			nav.Outcome = OutcomeFailed
		}
		return err
	})
	return run(ctx)
}

func (o *Observer) urlChanged(ctx context.Context, nav *Navigation, req navRequest) error {
	loc := o.env.Location()
	if !navenv.SameOrigin(loc, req.url) {
		nav.Outcome = OutcomeSkipped
		return nil
	}

	o.mu.Lock()
	spaceAsPlus := o.spaceAsPlus
	o.mu.Unlock()

	next, err := urlnorm.Normalize(req.url, spaceAsPlus)
	if err != nil {
		return errors.New("E202").WithDetail("%q", req.url.String()).Wrap(err)
	}
	nav.URL = next.String()

	if !req.skipCheck && urlnorm.Same(next, loc) {
		nav.Outcome = OutcomeSkipped
		return nil
	}

	if (req.status == navenv.StatusClick || req.status == navenv.StatusManual) && req.scope != "" {
		ok, err := o.runBeforeRoute(ctx, next, req.status, req.scope)
		if err != nil {
			return err
		}
		if !ok {
			nav.Outcome = OutcomeVetoed
			return nil
		}
	}

	o.commit(nav, req, next)
	return nil
}

// runBeforeRoute asks the handler registered for scope on the best matching
// route. No route or no handler for the exact scope approves.
func (o *Observer) runBeforeRoute(ctx context.Context, u *url.URL, status navenv.Status, scope string) (ok bool, err error) {
	o.mu.Lock()
	x := o.extractor
	o.mu.Unlock()

	res := routematch.Find(o.routes.Routes(), u.EscapedPath(), x)
	if !res.Found {
		return true, nil
	}
	h, found := res.Route.Handler(scope)
	if !found || h == nil {
		return true, nil
	}

	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = errors.New("E201").
				WithDetail("scope %q on %s: %v", scope, res.Pattern(), r).
				Wrap(fmt.Errorf("%s", debug.Stack()))
		}
	}()

	ok, err = h(ctx, res.Params, status)
	if err != nil {
		return false, errors.New("E200").WithDetail("scope %q on %s", scope, res.Pattern()).Wrap(err)
	}
	return ok, nil
}

// commit mutates history and records the navigation. Commits are
// serialized by commitMu so they apply in a single order and the last one
// wins. The history mutation runs outside mu, so a slow environment does
// not stall TakeRecords, Connected or Disconnect.
func (o *Observer) commit(nav *Navigation, req navRequest, next *url.URL) {
	href := next.String()
	state := navenv.State{}
	if req.scope != "" {
		state["scope"] = req.scope
	}

	o.commitMu.Lock()
	o.mu.Lock()
	now := o.env.Now()
	replace := req.status != navenv.StatusClick ||
		(o.dwellTime >= 0 && o.lastChangedAt+o.dwellTime > now)
	o.lastChangedAt = now
	o.lastScope = req.scope
	o.mu.Unlock()

	if replace {
		o.env.ReplaceState(state, href)
	} else {
		o.env.PushState(state, href)
	}

	o.mu.Lock()
	if o.connected {
		o.entries.Add(entrylist.Entry{
			Status:    req.status,
			Scope:     req.scope,
			URL:       href,
			StartTime: now,
		})
	}
	callback, x, logger := o.callback, o.extractor, o.logger
	o.mu.Unlock()
	o.commitMu.Unlock()

	nav.Outcome = OutcomeCommitted
	nav.Replace = replace

	logger.Debug("navigation committed",
		"observer", nav.ObserverID,
		"status", req.status,
		"scope", req.scope,
		"url", href,
		"replace", replace)

	if callback != nil {
		callback(o.entries, o)
	}

	res := routematch.Find(o.routes.Routes(), next.EscapedPath(), x)
	name := PushStateEvent
	if req.status == navenv.StatusPopState {
		name = PopStateEvent
	}
	o.env.Dispatch(name, RouteEvent{
		Found:  res.Found,
		Params: res.Params,
		Scope:  req.scope,
		Status: req.status,
		URL:    href,
	})
}
