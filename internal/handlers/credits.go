package handlers

import (
	"net/http"

	"tourneyhost/internal/middleware"
	"tourneyhost/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, services.Packages)
}

type createOrderRequest struct {
	PackageID string `json:"package_id" validate:"required"`
	Phone     string `json:"phone" validate:"omitempty,min=10,max=15"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.payments.CreateOrder(r.Context(), services.CreateOrderRequest{
		UserID:    userID,
		PackageID: req.PackageID,
		Phone:     req.Phone,
	})
	if err != nil {
		respondServiceError(w, r, err, "unable to create order")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	order, err := h.payments.GetOrder(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err, "unable to load order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r)
	rows, err := h.payments.ListOrders(r.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(w, r, err, "unable to load orders")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
