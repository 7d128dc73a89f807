// Package middleware provides observability middleware for urlobserver.
//
// This package includes:
//   - OpenTelemetry tracing, one span per navigation attempt
//   - Prometheus metrics for navigations, history operations and connections
//
// # OpenTelemetry Middleware
//
//	obs := urlobserver.New(env,
//	    urlobserver.WithMiddleware(
//	        middleware.OpenTelemetry(),
//	    ),
//	)
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("checkout-tab"),
//	    middleware.WithNavigationFilter(func(nav *urlobserver.Navigation) bool {
//	        return nav.Status != navenv.StatusInit
//	    }),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware collects:
//   - urlobserver_navigations_total: attempts by status and outcome
//   - urlobserver_navigation_duration_seconds: processing time by status
//   - urlobserver_history_ops_total: pushState and replaceState calls
//   - urlobserver_active_connections: open WebSocket connections
//
//	urlobserver.WithMiddleware(middleware.Prometheus())
//
// Then expose metrics on a separate port:
//
//	http.Handle("/metrics", promhttp.Handler())
//	go http.ListenAndServe(":9090", nil)
//
// # Context Propagation
//
// The OpenTelemetry middleware passes the span context down the chain, so
// before-route handlers can start child spans from the ctx they receive.
package middleware
