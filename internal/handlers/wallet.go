package handlers

import (
	"net/http"

	"tourneyhost/internal/middleware"
	"tourneyhost/internal/models"
	"tourneyhost/internal/money"
	"tourneyhost/internal/services"
	"tourneyhost/internal/websocket"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.wallets.Wallet(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "unable to load wallet")
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r)
	walletType := models.WalletType(r.URL.Query().Get("wallet_type"))
	rows, err := h.wallets.Transactions(r.Context(), userID, walletType, limit, offset)
	if err != nil {
		respondServiceError(w, r, err, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// SelfCheck compares the caller's wallet balances with their transaction log.
func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	report, err := h.reconciler.Check(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, "unable to self_check")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent": report.Clean(),
		"drifts":     report.Drifts,
	})
}

type withdrawalRequest struct {
	Amount string `json:"amount" validate:"required"`
	UPIID  string `json:"upi_id" validate:"required,max=100"`
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, err := money.ParseRupees(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	withdrawal, err := h.wallets.RequestWithdrawal(r.Context(), services.WithdrawalRequest{
		UserID: userID,
		Amount: amount,
		UPIID:  req.UPIID,
	})
	if err != nil {
		respondServiceError(w, r, err, "unable to request withdrawal")
		return
	}
	respondJSON(w, http.StatusCreated, withdrawal)
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r)
	rows, err := h.wallets.Withdrawals(r.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(w, r, err, "unable to load withdrawals")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) WSWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.upgrader, h.hub, userID)
}
