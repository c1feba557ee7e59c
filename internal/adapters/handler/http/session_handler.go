package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type SessionHandler struct {
	sessions ports.SessionService
	polls    ports.PollService
}

func NewSessionHandler(sessions ports.SessionService, polls ports.PollService) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		polls:    polls,
	}
}

// fieldRequest addresses an option slot with a 1-based Option number.
type fieldRequest struct {
	Field  string `json:"field"`
	Option int    `json:"option"`
	Value  string `json:"value"`
}

type inputRequest struct {
	Text string `json:"text"`
}

type inputResponse struct {
	Filled  bool                    `json:"filled"`
	Session *domain.CreationSession `json:"session,omitempty"`
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Start(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	h.sessions.End(userFrom(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) SetField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	field, err := domain.ParseField(chi.URLParam(r, "field"), req.Option-1)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.sessions.SetField(userFrom(r), field, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) Await(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	field := domain.Field{}
	if req.Field != "" && req.Field != "none" {
		var err error
		field, err = domain.ParseField(req.Field, req.Option-1)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	session, err := h.sessions.Await(userFrom(r), field)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) Input(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, filled, err := h.sessions.FillAwaited(userFrom(r), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inputResponse{Filled: filled, Session: session})
}

func (h *SessionHandler) Publish(w http.ResponseWriter, r *http.Request) {
	poll, err := h.polls.Publish(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, poll)
}

func (h *SessionHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.sessions.SaveDraft(userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (h *SessionHandler) LoadDraft(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.LoadDraft(userFrom(r), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	session, err := h.polls.BeginEdit(r.Context(), userFrom(r), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}
