package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tourneyhost/internal/db"
	"tourneyhost/internal/services"

	log "github.com/sirupsen/logrus"
)

const maxPageSize = 100

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service sentinels to HTTP statuses. Anything
// unrecognised is logged and reported as a 500 with a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNotHost):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrAlreadyJoined),
		errors.Is(err, services.ErrTournamentFull),
		errors.Is(err, services.ErrTournamentClosed),
		errors.Is(err, services.ErrHostCannotJoin),
		errors.Is(err, services.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInsufficientCredits),
		errors.Is(err, services.ErrInsufficientEarnings):
		status = http.StatusPaymentRequired
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidCreditType),
		errors.Is(err, services.ErrInvalidUPI),
		errors.Is(err, services.ErrUnknownPackage),
		errors.Is(err, services.ErrPhoneRequired),
		errors.Is(err, services.ErrNotWinner),
		errors.Is(err, services.ErrInvalidPrizeDistribution),
		errors.Is(err, services.ErrInvalidTournament):
		status = http.StatusBadRequest
	case errors.Is(err, db.ErrRetryLimit):
		status = http.StatusServiceUnavailable
		fallback = "service busy, retry"
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error(fallback)
		respondError(w, status, fallback)
		return
	}
	respondError(w, status, err.Error())
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// pagination reads limit and page query parameters.
func pagination(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	limit = parseInt(query.Get("limit"), 50)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}
