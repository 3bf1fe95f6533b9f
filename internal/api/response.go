package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/user/clawbridge/internal/app"
	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/loop"
	"github.com/user/clawbridge/internal/menu"
	"github.com/user/clawbridge/internal/session"
)

type errorBody struct {
	Error string `json:"error"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if data == nil || status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	jsonError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, command.ErrUnknownCommand),
		errors.Is(err, command.ErrInvalidApp),
		errors.Is(err, command.ErrInvalidCode),
		errors.Is(err, command.ErrInvalidAction),
		errors.Is(err, session.ErrEmptyCommand),
		errors.Is(err, session.ErrMultiLine),
		errors.Is(err, menu.ErrUnknownSelection),
		errors.Is(err, menu.ErrIncomplete):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNoSession), errors.Is(err, app.ErrNoHistory):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNothingToInstall):
		return http.StatusConflict
	case errors.Is(err, loop.ErrStopped):
		return http.StatusServiceUnavailable
	case session.IsDispatchError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
