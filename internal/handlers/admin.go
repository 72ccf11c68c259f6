package handlers

import (
	"encoding/json"
	"net/http"

	"tourneyhost/internal/middleware"

	"github.com/jmoiron/sqlx"
)

type promoteRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req promoteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	target, err := h.resolveUser(r, req.Identifier)
	if err != nil {
		respondResolveError(w, err, "unable to resolve user")
		return
	}
	var promoted int64
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		var err error
		promoted, err = h.admin.Promote(r.Context(), tx, target.ID)
		if err != nil || promoted == 0 {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"target_user_id": target.ID,
		})
		return h.audit.Log(r.Context(), tx, userID, "admin.promoted", "user", target.ID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to promote admin")
		return
	}
	if promoted == 0 {
		respondJSON(w, http.StatusOK, map[string]string{"status": "already_admin"})
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "promoted"})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// Reconcile runs the wallet check across every user on demand.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Check(r.Context(), "")
	if err != nil {
		respondServiceError(w, r, err, "unable to reconcile balances")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent":      report.Clean(),
		"wallets_checked": report.WalletsChecked,
		"drifts":          report.Drifts,
	})
}
