package api

import (
	"net/http"
	"strconv"

	"github.com/user/clawbridge/internal/session"
)

const (
	defaultOutputLines = 200
	maxOutputLines     = 2000
)

type outputResponse struct {
	Role  session.Role `json:"role"`
	Lines []string     `json:"lines"`
}

func (h *handler) getStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.ctrl.Status())
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.ctrl.Sessions()
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []session.Info{}
	}
	jsonResponse(w, http.StatusOK, list)
}

func (h *handler) getSessionOutput(w http.ResponseWriter, r *http.Request) {
	role, err := session.ParseRole(r.PathValue("role"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines := defaultOutputLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid lines query parameter")
			return
		}
		lines = min(n, maxOutputLines)
	}

	out, err := h.ctrl.Output(role, lines)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	jsonResponse(w, http.StatusOK, outputResponse{Role: role, Lines: out})
}

func parsePositive(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
