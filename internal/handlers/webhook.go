package handlers

import (
	"io"
	"net/http"
	"time"

	"tourneyhost/internal/services"
	"tourneyhost/internal/webhook"

	log "github.com/sirupsen/logrus"
)

const maxWebhookBody = 1 << 20

const (
	msgWebhookOK         = "Webhook processed"
	msgAlreadyProcessed  = "Already processed"
	msgNotCreditOrder    = "Not a credit order"
	msgReceivedWithError = "Webhook received with errors"
)

type webhookResponse struct {
	Message string `json:"message"`
	Outcome string `json:"outcome,omitempty"`
}

// CashfreeWebhook verifies and applies a Cashfree payment notification.
// Once the signature checks out the response is always 200: Cashfree
// retries anything else, and idempotency lives on the order row.
func (h *Handler) CashfreeWebhook(w http.ResponseWriter, r *http.Request) {
	began := time.Now()
	defer func() { h.metrics.ObserveWebhook(time.Since(began).Seconds()) }()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.metrics.Webhook("", "method_not_allowed")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	signature := r.Header.Get(webhook.SignatureHeader)
	if signature == "" {
		h.metrics.Webhook("", "missing_signature")
		respondError(w, http.StatusBadRequest, "missing webhook signature")
		return
	}
	secret := h.cfg.Cashfree.WebhookSecret
	if secret == "" {
		log.Error("CASHFREE_WEBHOOK_SECRET is not configured")
		h.metrics.Webhook("", "misconfigured")
		respondError(w, http.StatusInternalServerError, "webhook secret not configured")
		return
	}
	timestamp := r.Header.Get(webhook.TimestampHeader)
	if timestamp == "" && h.cfg.Cashfree.RequireWebhookTimestamp {
		h.metrics.Webhook("", "missing_timestamp")
		respondError(w, http.StatusUnauthorized, "missing webhook timestamp")
		return
	}
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.metrics.Webhook("", "unreadable")
		respondError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	if !webhook.Verify(signature, rawBody, secret, timestamp) {
		log.WithField("remote_addr", r.RemoteAddr).Warn("rejected webhook with invalid signature")
		h.metrics.Webhook("", "invalid_signature")
		respondError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	entry := log.WithFields(log.Fields{
		"version":         r.Header.Get(webhook.VersionHeader),
		"idempotency_key": r.Header.Get(webhook.IdempotencyKeyHeader),
	})
	event, err := webhook.Parse(rawBody)
	if err != nil {
		entry.WithError(err).Error("unparseable webhook payload")
		h.metrics.Webhook("", "parse_error")
		respondJSON(w, http.StatusOK, webhookResponse{Message: msgReceivedWithError})
		return
	}
	entry = entry.WithFields(log.Fields{
		"type":     event.Type,
		"order_id": event.OrderID(),
	})
	entry.Info("webhook received")

	outcome, err := h.payments.HandleWebhook(r.Context(), rawBody, event)
	if err != nil {
		entry.WithError(err).Error("webhook processing failed")
		h.metrics.Webhook(event.Type, "error")
		respondJSON(w, http.StatusOK, webhookResponse{Message: msgReceivedWithError})
		return
	}
	h.metrics.Webhook(event.Type, string(outcome))
	entry.WithField("outcome", outcome).Info("webhook processed")

	message := msgWebhookOK
	switch outcome {
	case services.OutcomeAlreadyProcessed:
		message = msgAlreadyProcessed
	case services.OutcomeNotCreditOrder:
		message = msgNotCreditOrder
	}
	respondJSON(w, http.StatusOK, webhookResponse{Message: message, Outcome: string(outcome)})
}
