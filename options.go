package urlobserver

import (
	"log/slog"
	"time"

	"github.com/vango-dev/urlobserver/pkg/routematch"
)

// DefaultDwellTime is the default minimum gap between clicks that push.
const DefaultDwellTime = 2 * time.Second

// Option configures an Observer. Options are accepted by New and by
// Observe; the latter applies them before the first navigation.
type Option func(*Observer)

// WithCallback sets the function run after every accepted navigation.
func WithCallback(cb Callback) Option {
	return func(o *Observer) {
		o.callback = cb
	}
}

// WithDwellTime sets the dwell time. Negative disables coalescing.
func WithDwellTime(d time.Duration) Option {
	return func(o *Observer) {
		o.dwellTime = d
	}
}

// WithDebug exposes the route table through RoutesForDebug.
func WithDebug(debug bool) Option {
	return func(o *Observer) {
		o.debug = debug
	}
}

// WithParamExtractor replaces the named capture group extractor.
func WithParamExtractor(x routematch.ParamExtractor) Option {
	return func(o *Observer) {
		if x != nil {
			o.extractor = x
		}
	}
}

// WithEncodeSpaceAsPlus controls whether query spaces are written as '+'
// (the default) or as %20.
func WithEncodeSpaceAsPlus(plus bool) Option {
	return func(o *Observer) {
		o.spaceAsPlus = plus
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Observer) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMiddleware appends navigation middleware. The first one added is the
// outermost. Given to Observe, it lasts until the next Disconnect.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *Observer) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithArchiver sets the sink that receives the audit trail on Disconnect.
func WithArchiver(a Archiver) Option {
	return func(o *Observer) {
		o.archiver = a
	}
}

// WithID names the observer in logs and archives.
func WithID(id string) Option {
	return func(o *Observer) {
		o.id = id
	}
}
