package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/db"
	"github.com/user/clawbridge/internal/freshness"
	"github.com/user/clawbridge/internal/session"
	"github.com/user/clawbridge/internal/status"
)

type controller interface {
	Status() status.Snapshot
	Sessions() ([]session.Info, error)
	Output(role session.Role, lines int) ([]string, error)
	Run(ctx context.Context, cmd command.Command) error
	Pair(ctx context.Context, app, code string) error
	CheckFreshness(ctx context.Context) (freshness.Result, error)
	Install(ctx context.Context, res freshness.Result) error
	LastCheck(ctx context.Context) (*db.FreshnessCheck, error)
	History(ctx context.Context, filter db.DispatchFilter) ([]*db.Dispatch, error)
}

type handler struct {
	ctrl controller
}

func NewRouter(ctrl controller, token string) http.Handler {
	h := &handler{ctrl: ctrl}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.getStatus)
	mux.HandleFunc("GET /api/sessions", h.listSessions)
	mux.HandleFunc("GET /api/sessions/{role}/output", h.getSessionOutput)

	mux.HandleFunc("POST /api/commands", h.runCommand)
	mux.HandleFunc("POST /api/pairing", h.submitPairing)

	mux.HandleFunc("POST /api/freshness/check", h.checkFreshness)
	mux.HandleFunc("POST /api/freshness/install", h.installPackage)
	mux.HandleFunc("GET /api/freshness/last", h.lastCheck)

	mux.HandleFunc("GET /api/history", h.listHistory)
	mux.HandleFunc("GET /api/menu", h.getMenu)

	return authMiddleware(token)(jsonMiddleware(corsMiddleware(mux)))
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				if strings.TrimSpace(authHeader[7:]) == token {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.URL.Query().Get("token") == token {
				next.ServeHTTP(w, r)
				return
			}

			jsonError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return io.ErrUnexpectedEOF
	}
	return nil
}
