package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	urlobserver "github.com/vango-dev/urlobserver"
	"github.com/vango-dev/urlobserver/internal/config"
	"github.com/vango-dev/urlobserver/pkg/archive"
	"github.com/vango-dev/urlobserver/pkg/middleware"
	"github.com/vango-dev/urlobserver/pkg/registry"
	"github.com/vango-dev/urlobserver/pkg/wsenv"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(load loader) *cobra.Command {
	var (
		addr        string
		metricsAddr string
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host observers for remote tabs over WebSocket",
		Long: `Start the WebSocket host. Each connecting tab gets its own observer
over the configured routes.

Endpoints:
  GET /ws        WebSocket protocol endpoint (path configurable)
  GET /healthz   liveness probe
  GET /routes    route table, when observer.debug is on
  GET /metrics   Prometheus metrics, on the metrics address

With --watch, route changes in the config file apply to new connections
without a restart.

Examples:
  urlobserver serve -c urlobserver.yaml
  urlobserver serve -c urlobserver.yaml --addr :3000 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if metricsAddr != "" {
				cfg.Server.MetricsAddr = metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := cfg.Logging.NewLogger(cmd.ErrOrStderr())
			slog.SetDefault(logger)

			s, err := newServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return s.run(ctx, watch)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics listen address, empty string in config disables")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload routes when the config file changes")

	return cmd
}

// server hosts one observer per WebSocket connection. Config reloads swap
// cfg and patterns; connections already open keep the routes they started
// with.
type server struct {
	logger     *slog.Logger
	archiver   urlobserver.Archiver
	middleware []urlobserver.Middleware

	mu       sync.RWMutex
	cfg      *config.Config
	patterns []*regexp.Regexp
}

func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server, error) {
	patterns, err := cfg.Patterns()
	if err != nil {
		return nil, err
	}

	s := &server{
		logger: logger,
		middleware: []urlobserver.Middleware{
			middleware.Prometheus(),
			middleware.OpenTelemetry(),
		},
		cfg:      cfg,
		patterns: patterns,
	}

	if cfg.Archive.Enabled() {
		a, err := archive.NewS3(ctx, archive.Config{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
			Region: cfg.Archive.Region,
		})
		if err != nil {
			return nil, err
		}
		s.archiver = a
		logger.Info("archiving audit trails", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix)
	}
	return s, nil
}

func (s *server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *server) routes() []*regexp.Regexp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patterns
}

// reload swaps in the routes and observer settings of cfg. Listen
// addresses and the archive target need a restart.
func (s *server) reload(cfg *config.Config) {
	patterns, err := cfg.Patterns()
	if err != nil {
		s.logger.Warn("ignoring reloaded config", "error", err)
		return
	}
	s.mu.Lock()
	cfg.Server = s.cfg.Server
	cfg.Archive = s.cfg.Archive
	s.cfg = cfg
	s.patterns = patterns
	s.mu.Unlock()
}

func (s *server) newObserver(c *wsenv.Conn) *urlobserver.Observer {
	cfg := s.config()
	opts := []urlobserver.Option{
		urlobserver.WithID(c.ID()),
		urlobserver.WithDwellTime(cfg.Observer.DwellTime),
		urlobserver.WithDebug(cfg.Observer.Debug),
		urlobserver.WithEncodeSpaceAsPlus(cfg.Observer.EncodeSpaceAsPlus),
		urlobserver.WithLogger(s.logger),
		urlobserver.WithMiddleware(s.middleware...),
	}
	if s.archiver != nil {
		opts = append(opts, urlobserver.WithArchiver(s.archiver))
	}
	return urlobserver.New(c, opts...)
}

func (s *server) handler() http.Handler {
	cfg := s.config()

	ws := wsenv.NewHandler(s.newObserver, s.routes,
		wsenv.WithLogger(s.logger),
		wsenv.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		wsenv.WithHooks(wsenv.Hooks{
			OnOpen: func(*wsenv.Conn) {
				middleware.RecordConnectionOpen()
			},
			OnClose: func(_ *wsenv.Conn, entries int) {
				middleware.RecordConnectionClose(entries)
			},
		}),
	)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get(cfg.Server.Path, ws.ServeHTTP)
	r.Get("/healthz", s.healthz)
	r.Get("/routes", s.routeTable)
	return r
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"routes": len(s.routes()),
	})
}

type routeInfo struct {
	Name string `json:"name,omitempty"`
	registry.RouteInfo
}

func (s *server) routeTable(w http.ResponseWriter, r *http.Request) {
	cfg := s.config()
	if !cfg.Observer.Debug {
		http.NotFound(w, r)
		return
	}

	reg := registry.New()
	for _, p := range s.routes() {
		reg.Add(p, nil, "")
	}
	snapshot := reg.Snapshot()
	out := make([]routeInfo, 0, len(snapshot))
	for _, ri := range snapshot {
		out = append(out, routeInfo{Name: cfg.RouteName(ri.Pattern), RouteInfo: ri})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// run serves until ctx is done, then shuts both listeners down.
func (s *server) run(ctx context.Context, watch bool) error {
	cfg := s.config()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers := []*http.Server{srv}

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	if watch {
		if cfg.Path() == "" {
			s.logger.Warn("--watch needs --config; not watching")
		} else {
			go func() {
				if err := config.Watch(ctx, cfg.Path(), config.DefaultDebounce, s.logger, s.reload); err != nil {
					s.logger.Error("config watch stopped", "error", err)
				}
			}()
		}
	}

	errCh := make(chan error, len(servers))
	for _, hs := range servers {
		go func(hs *http.Server) {
			s.logger.Info("listening", "addr", hs.Addr)
			if err := hs.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen %s: %w", hs.Addr, err)
			}
		}(hs)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, hs := range servers {
		if err := hs.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", "addr", hs.Addr, "error", err)
		}
	}
	s.logger.Info("stopped")
	return runErr
}
