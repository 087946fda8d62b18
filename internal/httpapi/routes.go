package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/party-trivia-backend/internal/auth"
	"github.com/DoyleJ11/party-trivia-backend/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func SetupRoutes(h *Handlers, jwtSvc *auth.JWT, wsHandler *ws.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", Healthz)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Post("/parties", h.CreateParty)
		r.Post("/parties/join", h.JoinParty)
		r.Get("/parties/{partyID}", h.GetParty)
		r.Get("/parties/{partyID}/session", h.CurrentSession)
		r.Post("/parties/{partyID}/start", h.StartGame)

		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Get("/sessions/{sessionID}/rounds", h.GetRounds)
		r.Post("/sessions/{sessionID}/picks", h.SubmitPicks)
		r.Post("/sessions/{sessionID}/begin", h.BeginGame)
		r.Post("/sessions/{sessionID}/reveal", h.RevealAnswer)
		r.Post("/sessions/{sessionID}/next", h.NextRound)

		r.Get("/me/question-stats", h.QuestionStats)

		r.Get("/ws", wsHandler.Subscribe)
	})

	return r
}
