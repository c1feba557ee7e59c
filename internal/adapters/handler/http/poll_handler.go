package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type PollHandler struct {
	service ports.PollService
}

func NewPollHandler(service ports.PollService) *PollHandler {
	return &PollHandler{
		service: service,
	}
}

func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.service.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

func (h *PollHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Close(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PollHandler) RemovePoll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), chi.URLParam(r, "ref")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
