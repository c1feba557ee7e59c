package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type VoteHandler struct {
	service ports.PollService
}

func NewVoteHandler(service ports.PollService) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

type voteRequest struct {
	OptionIndex *int `json:"option_index"`
}

type myVoteResponse struct {
	OptionIndex int `json:"option_index"`
}

func (h *VoteHandler) VoteOnPoll(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeJSON(r, &req); err != nil || req.OptionIndex == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input := ports.VoteInput{
		PollRef:     chi.URLParam(r, "ref"),
		VoterID:     userFrom(r),
		OptionIndex: *req.OptionIndex,
	}

	vote, err := h.service.Vote(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

func (h *VoteHandler) GetMyVote(w http.ResponseWriter, r *http.Request) {
	choice, found, err := h.service.VoterChoice(r.Context(), chi.URLParam(r, "ref"), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		http.Error(w, "vote not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, myVoteResponse{OptionIndex: choice})
}
