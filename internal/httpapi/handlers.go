package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/DoyleJ11/party-trivia-backend/internal/apperr"
	"github.com/DoyleJ11/party-trivia-backend/internal/auth"
	"github.com/DoyleJ11/party-trivia-backend/internal/party"
	"github.com/DoyleJ11/party-trivia-backend/internal/picks"
	"github.com/DoyleJ11/party-trivia-backend/internal/rounds"
	"github.com/DoyleJ11/party-trivia-backend/internal/stats"
	"github.com/DoyleJ11/party-trivia-backend/pkg/types"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	Party  *party.Service
	Picks  *picks.Service
	Rounds *rounds.Service
	Stats  *stats.Service
	Log    *zap.Logger
}

func (h *Handlers) CreateParty(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req types.CreatePartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("bad json"))
		return
	}

	p, err := h.Party.CreateParty(r.Context(), userID, req.RequiredPicks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) JoinParty(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req types.JoinPartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("bad json"))
		return
	}

	p, err := h.Party.JoinParty(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) GetParty(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := callerAndID(w, r, "partyID")
	if !ok {
		return
	}

	p, members, err := h.Party.GetParty(r.Context(), userID, partyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.PartyResponse{Party: *p, Members: members})
}

func (h *Handlers) CurrentSession(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := callerAndID(w, r, "partyID")
	if !ok {
		return
	}

	session, err := h.Party.CurrentSession(r.Context(), userID, partyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) StartGame(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := callerAndID(w, r, "partyID")
	if !ok {
		return
	}

	session, err := h.Party.StartGame(r.Context(), userID, partyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := callerAndID(w, r, "sessionID")
	if !ok {
		return
	}

	session, states, err := h.Rounds.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SessionResponse{Session: *session, PlayerStates: states})
}

func (h *Handlers) GetRounds(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := callerAndID(w, r, "sessionID")
	if !ok {
		return
	}

	rs, err := h.Rounds.GetRounds(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handlers) SubmitPicks(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := callerAndID(w, r, "sessionID")
	if !ok {
		return
	}

	var req types.SubmitPicksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("bad json"))
		return
	}

	if err := h.Picks.SubmitPicks(r.Context(), userID, sessionID, req.QuestionIDs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) BeginGame(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := callerAndID(w, r, "sessionID")
	if !ok {
		return
	}

	if err := h.Picks.BeginGame(r.Context(), userID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RevealAnswer(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := callerAndID(w, r, "sessionID")
	if !ok {
		return
	}

	var req types.RevealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("bad json"))
		return
	}

	if err := h.Rounds.RevealAnswer(r.Context(), userID, sessionID, req.RoundIndex); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) NextRound(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := callerAndID(w, r, "sessionID")
	if !ok {
		return
	}

	if err := h.Rounds.NextRound(r.Context(), userID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) QuestionStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sts, err := h.Stats.UserQuestionStats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sts)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func callerAndID(w http.ResponseWriter, r *http.Request, param string) (userID, id uint64, ok bool) {
	userID, hasUser := auth.UserIDFromContext(r.Context())
	if !hasUser {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}
	id, err := strconv.ParseUint(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, apperr.Validation("bad %s", param))
		return 0, 0, false
	}
	return userID, id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindAuthorization:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindState, apperr.KindConflict:
		status = http.StatusConflict
	}
	writeJSON(w, status, types.ErrorResponse{
		Error: err.Error(),
		Kind:  string(apperr.KindOf(err)),
	})
}
