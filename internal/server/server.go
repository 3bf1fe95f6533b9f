package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/clawbridge/internal/hub"
	"github.com/user/clawbridge/web"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	hub        *hub.Hub
	httpServer *http.Server
}

// New serves the pairing page at /, the hub at /ws and apiHandler under /api/.
func New(addr string, h *hub.Hub, apiHandler http.Handler) (*Server, error) {
	mux := http.NewServeMux()

	subFS, err := fs.Sub(web.Assets, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to sub filesystem: %w", err)
	}
	fileServer := http.FileServer(http.FS(subFS))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		cleanPath := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if cleanPath == "" || cleanPath == "." {
			cleanPath = "index.html"
		}
		if _, err := fs.Stat(subFS, cleanPath); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		fallbackReq := r.Clone(r.Context())
		fallbackURL := *r.URL
		fallbackURL.Path = "/"
		fallbackReq.URL = &fallbackURL
		fileServer.ServeHTTP(w, fallbackReq)
	}))

	mux.HandleFunc("/ws", h.HandleWebSocket)
	if apiHandler != nil {
		mux.Handle("/api/", apiHandler)
	}

	return &Server{
		hub: h,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start listens on the configured address and blocks until ctx is done or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hub and the HTTP server on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
