package urlobserver

import (
	"context"

	"github.com/vango-dev/urlobserver/pkg/navenv"
)

// Outcome is how a navigation attempt ended.
type Outcome string

const (
	// OutcomeCommitted means history was mutated.
	OutcomeCommitted Outcome = "committed"

	// OutcomeVetoed means a before-route handler returned false.
	OutcomeVetoed Outcome = "vetoed"

	// OutcomeSkipped means there was nothing to do: cross-origin or same URL.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed means the attempt returned an error.
	OutcomeFailed Outcome = "failed"
)

// Navigation describes one navigation attempt as it passes through the
// middleware chain. Outcome, Replace and URL are filled in by the observer
// before next returns.
type Navigation struct {
	ObserverID string
	Status     navenv.Status
	Scope      string

	// URL is the candidate URL, normalized once normalization ran.
	URL string

	Outcome Outcome
	Replace bool
}

// Middleware wraps navigation processing.
type Middleware interface {
	Handle(ctx context.Context, nav *Navigation, next func(context.Context) error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, nav *Navigation, next func(context.Context) error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, nav *Navigation, next func(context.Context) error) error {
	return f(ctx, nav, next)
}

// chain runs final behind mw, first element outermost.
func chain(mw []Middleware, nav *Navigation, final func(context.Context) error) func(context.Context) error {
	next := final
	for i := len(mw) - 1; i >= 0; i-- {
		m, inner := mw[i], next
		next = func(ctx context.Context) error {
			return m.Handle(ctx, nav, inner)
		}
	}
	return next
}
