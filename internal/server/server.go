// Package server is the browser UI: upload a dataset, pick columns, and get a
// Sankey chart plus optional narrative. Every request builds its own table and
// graph; nothing is kept between requests.
package server

import (
	"context"
	stdlog "log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/flowloom-cli/internal/flow"
	"github.com/KaramelBytes/flowloom-cli/internal/logger"
	"github.com/KaramelBytes/flowloom-cli/internal/narrative"
)

// DefaultMaxUploadBytes caps uploads when Config.MaxUploadBytes is zero.
const DefaultMaxUploadBytes = 32 << 20

// Narrator produces narrative text for a graph. *narrative.Generator
// satisfies it.
type Narrator interface {
	Commentary(ctx context.Context, g *flow.Graph) (*narrative.Result, error)
	Email(ctx context.Context, g *flow.Graph, commentary string) (*narrative.Result, error)
}

// Config holds configuration for the UI server.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	// RootLabel is the single-split root when a request does not name one.
	RootLabel string
	// Narrator is optional; without it /api/narrative answers 503.
	Narrator Narrator
	// NarrativeTimeout bounds one narrative call. Zero means two minutes.
	NarrativeTimeout time.Duration
}

// Server is the UI server.
type Server struct {
	cfg Config
}

// New creates a server, filling defaults.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.RootLabel == "" {
		cfg.RootLabel = flow.DefaultRootLabel
	}
	if cfg.NarrativeTimeout <= 0 {
		cfg.NarrativeTimeout = 2 * time.Minute
	}
	return &Server{cfg: cfg}
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  stdlog.New(logger.Writer(), "", 0),
			NoColor: true,
		}),
		middleware.Recoverer,
	)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/columns", s.handleColumns)
		r.Post("/flow", s.handleFlow)
		r.Post("/narrative", s.handleNarrative)
		r.Post("/chart", s.handleChart)
	})
	return r
}

// Serve starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("starting UI server", "addr", ln.Addr().String())

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Debug("shutting down UI server")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
