package api

import (
	"net/http"

	"github.com/user/clawbridge/internal/db"
	"github.com/user/clawbridge/internal/freshness"
	"github.com/user/clawbridge/internal/menu"
)

type checkResponse struct {
	freshness.Result
	Message string `json:"message"`
	Offer   string `json:"offer,omitempty"`
}

func (h *handler) checkFreshness(w http.ResponseWriter, r *http.Request) {
	res, err := h.ctrl.CheckFreshness(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, checkResponse{Result: res, Message: res.Message(), Offer: menu.OfferLabel(res)})
}

func (h *handler) installPackage(w http.ResponseWriter, r *http.Request) {
	var res freshness.Result
	if err := decodeJSON(r, &res); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.ctrl.Install(r.Context(), res); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) lastCheck(w http.ResponseWriter, r *http.Request) {
	last, err := h.ctrl.LastCheck(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if last == nil {
		jsonError(w, http.StatusNotFound, "no freshness check recorded")
		return
	}
	jsonResponse(w, http.StatusOK, last)
}

func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.DispatchFilter{Role: q.Get("role"), Outcome: q.Get("outcome")}
	if raw := q.Get("limit"); raw != "" {
		n, err := parsePositive(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid limit query parameter")
			return
		}
		filter.Limit = n
	}
	list, err := h.ctrl.History(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*db.Dispatch{}
	}
	jsonResponse(w, http.StatusOK, list)
}

func (h *handler) getMenu(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, menu.Tree())
}
