package api

import (
	"net/http"

	"github.com/user/clawbridge/internal/command"
	"github.com/user/clawbridge/internal/session"
)

type runCommandRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

type pairingRequest struct {
	App  string `json:"app"`
	Code string `json:"code"`
}

type dispatchResponse struct {
	Command string       `json:"command"`
	Role    session.Role `json:"role"`
}

func (h *handler) runCommand(w http.ResponseWriter, r *http.Request) {
	var req runCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cmd, err := command.Parse(req.Command, req.Args...)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.ctrl.Run(r.Context(), cmd); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, dispatchResponse{Command: cmd.Name(), Role: cmd.Role()})
}

func (h *handler) submitPairing(w http.ResponseWriter, r *http.Request) {
	var req pairingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.ctrl.Pair(r.Context(), req.App, req.Code); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, dispatchResponse{Command: command.Pair{}.Name(), Role: session.Primary})
}
