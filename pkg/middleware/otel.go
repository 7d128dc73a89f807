package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	urlobserver "github.com/vango-dev/urlobserver"
)

// Default tracer name.
const defaultTracerName = "urlobserver"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "urlobserver").
	TracerName string

	// IncludeURL records the candidate URL. URLs may carry query
	// parameters with user data; enabled by default.
	IncludeURL bool

	// Filter determines which navigations to trace.
	// If nil, all navigations are traced.
	Filter func(nav *urlobserver.Navigation) bool

	// AttributeExtractor adds custom attributes, read after the navigation
	// finished.
	AttributeExtractor func(nav *urlobserver.Navigation) []attribute.KeyValue

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeURL enables/disables the url attribute.
func WithIncludeURL(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeURL = include
	}
}

// WithNavigationFilter sets a filter function for navigations.
func WithNavigationFilter(filter func(nav *urlobserver.Navigation) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(nav *urlobserver.Navigation) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
		IncludeURL: true,
	}
}

// OpenTelemetry creates middleware that traces every navigation attempt.
//
// The middleware:
//   - Starts a span named urlobserver.<status> with observer, scope and url
//   - Passes the span context to the rest of the chain and to handlers
//   - Records outcome and replace once the navigation finished
//   - Records errors and sets span status
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main() before observing:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) urlobserver.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return urlobserver.MiddlewareFunc(func(ctx context.Context, nav *urlobserver.Navigation, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(nav) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("urlobserver.status", nav.Status.String()),
			attribute.String("urlobserver.scope", nav.Scope),
		}
		if nav.ObserverID != "" {
			attrs = append(attrs, attribute.String("urlobserver.observer_id", nav.ObserverID))
		}

		spanCtx, span := config.tracer.Start(ctx,
			fmt.Sprintf("urlobserver.%s", nav.Status),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		err := next(spanCtx)

		span.SetAttributes(
			attribute.String("urlobserver.outcome", string(nav.Outcome)),
			attribute.Bool("urlobserver.replace", nav.Replace),
		)
		if config.IncludeURL {
			span.SetAttributes(attribute.String("urlobserver.url", nav.URL))
		}
		if config.AttributeExtractor != nil {
			span.SetAttributes(config.AttributeExtractor(nav)...)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}
