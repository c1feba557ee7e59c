package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewHandler wires the REST API. slash, when set, serves the chat slash
// command endpoint.
func NewHandler(sessionHandler *SessionHandler, pollHandler *PollHandler, voteHandler *VoteHandler, slash http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	if slash != nil {
		r.Method(http.MethodPost, "/slack/commands", slash)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/", sessionHandler.Start)
			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.End)
			r.Put("/fields/{field}", sessionHandler.SetField)
			r.Post("/await", sessionHandler.Await)
			r.Post("/input", sessionHandler.Input)
			r.Post("/publish", sessionHandler.Publish)
			r.Post("/drafts", sessionHandler.SaveDraft)
			r.Post("/drafts/{code}", sessionHandler.LoadDraft)
		})

		r.Route("/polls", func(r chi.Router) {
			r.Get("/", pollHandler.ListPolls)
			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", pollHandler.GetPoll)
				r.Get("/results", pollHandler.GetResults)
				r.Post("/close", pollHandler.ClosePoll)
				r.Delete("/", pollHandler.RemovePoll)

				r.Group(func(r chi.Router) {
					r.Use(RequireUser)
					r.Post("/edit", sessionHandler.BeginEdit)
					r.Post("/votes", voteHandler.VoteOnPoll)
					r.Get("/my-vote", voteHandler.GetMyVote)
				})
			})
		})
	})

	return r
}
