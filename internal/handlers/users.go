package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"tourneyhost/internal/models"
	"tourneyhost/internal/validator"

	"github.com/go-chi/chi/v5"
)

// AdminGetUser looks a user up by username or email and returns the
// account with its wallet.
func (h *Handler) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	identifier, err := url.PathUnescape(chi.URLParam(r, "identifier"))
	if err != nil || identifier == "" {
		respondError(w, http.StatusBadRequest, "invalid identifier")
		return
	}
	user, err := h.resolveUser(r, identifier)
	if err != nil {
		respondResolveError(w, err, "unable to load user")
		return
	}
	wallet, err := h.wallets.Wallet(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err, "unable to load wallet")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"wallet": wallet,
	})
}

// resolveUser treats identifiers containing "@" as emails and anything else
// as a username. Malformed identifiers fail before touching the store.
func (h *Handler) resolveUser(r *http.Request, identifier string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		email := strings.ToLower(identifier)
		if err := validator.ValidateEmail(email); err != nil {
			return models.User{}, err
		}
		return h.users.GetByEmail(r.Context(), email)
	}
	if err := validator.ValidateUsername(identifier); err != nil {
		return models.User{}, err
	}
	return h.users.GetByUsername(r.Context(), identifier)
}

func respondResolveError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, validator.ErrInvalidEmail), errors.Is(err, validator.ErrInvalidUsername):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		respondError(w, http.StatusNotFound, "user not found")
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}
