package handlers

import (
	"net/http"
	"time"

	"tourneyhost/internal/middleware"
	"tourneyhost/internal/models"
	"tourneyhost/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createTournamentRequest struct {
	Name              string                     `json:"name" validate:"required,max=120"`
	StartDate         time.Time                  `json:"start_date" validate:"required"`
	EntryFee          int64                      `json:"entry_fee" validate:"gte=0"`
	MaxPlayers        int                        `json:"max_players" validate:"required,min=2,max=1000"`
	PrizeDistribution map[string]decimal.Decimal `json:"prize_distribution"`
}

func (h *Handler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createTournamentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tournament, err := h.tournaments.Create(r.Context(), userID, services.CreateTournamentRequest{
		Name:              req.Name,
		StartDate:         req.StartDate,
		EntryFee:          req.EntryFee,
		MaxPlayers:        req.MaxPlayers,
		PrizeDistribution: req.PrizeDistribution,
	})
	if err != nil {
		respondServiceError(w, r, err, "unable to create tournament")
		return
	}
	respondJSON(w, http.StatusCreated, tournament)
}

func (h *Handler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.tournaments.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err, "unable to load tournaments")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) GetTournament(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.tournaments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "unable to load tournament")
		return
	}
	respondJSON(w, http.StatusOK, tournament)
}

func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	rows, err := h.tournaments.Participants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "unable to load participants")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

type joinTournamentRequest struct {
	IGN string `json:"ign" validate:"required,max=50"`
}

func (h *Handler) JoinTournament(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req joinTournamentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	participant, err := h.tournaments.Join(r.Context(), userID, chi.URLParam(r, "id"), req.IGN)
	if err != nil {
		respondServiceError(w, r, err, "unable to join tournament")
		return
	}
	respondJSON(w, http.StatusCreated, participant)
}

func (h *Handler) StartTournament(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tournament, err := h.tournaments.Start(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "unable to start tournament")
		return
	}
	respondJSON(w, http.StatusOK, tournament)
}

type endTournamentRequest struct {
	Winners map[string]models.Winner `json:"winners"`
}

// EndTournament accepts an empty body, which ends the tournament without
// paying out prizes.
func (h *Handler) EndTournament(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req endTournamentRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}
	tournament, err := h.tournaments.End(r.Context(), userID, chi.URLParam(r, "id"), req.Winners)
	if err != nil {
		respondServiceError(w, r, err, "unable to end tournament")
		return
	}
	respondJSON(w, http.StatusOK, tournament)
}

func (h *Handler) CancelTournament(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tournament, err := h.tournaments.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "unable to cancel tournament")
		return
	}
	respondJSON(w, http.StatusOK, tournament)
}
