package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotConfigured means no Cashfree API credentials were supplied.
var ErrNotConfigured = errors.New("cashfree api credentials not configured")

type Config struct {
	BaseURL    string
	AppID      string
	SecretKey  string
	APIVersion string
	NotifyURL  string
	ReturnURL  string
}

type CashfreeClient struct {
	cfg        Config
	httpClient *http.Client
}

func NewCashfreeClient(cfg Config) *CashfreeClient {
	return &CashfreeClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *CashfreeClient) Configured() bool {
	return c.cfg.AppID != "" && c.cfg.SecretKey != ""
}

type Customer struct {
	ID    string `json:"customer_id"`
	Email string `json:"customer_email,omitempty"`
	Phone string `json:"customer_phone"`
	Name  string `json:"customer_name,omitempty"`
}

type OrderRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Currency string
	Customer Customer
	Note     string
}

type OrderResponse struct {
	CFOrderID        string `json:"cf_order_id"`
	OrderID          string `json:"order_id"`
	OrderStatus      string `json:"order_status"`
	PaymentSessionID string `json:"payment_session_id"`
}

type createOrderBody struct {
	OrderID         string         `json:"order_id"`
	OrderAmount     float64        `json:"order_amount"`
	OrderCurrency   string         `json:"order_currency"`
	CustomerDetails Customer       `json:"customer_details"`
	OrderMeta       *orderMeta     `json:"order_meta,omitempty"`
	OrderNote       string         `json:"order_note,omitempty"`
	OrderTags       map[string]any `json:"order_tags,omitempty"`
}

type orderMeta struct {
	NotifyURL string `json:"notify_url,omitempty"`
	ReturnURL string `json:"return_url,omitempty"`
}

// CreateOrder registers the order with Cashfree and returns the payment
// session the client uses to open checkout.
func (c *CashfreeClient) CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	if !c.Configured() {
		return OrderResponse{}, ErrNotConfigured
	}
	amount, _ := req.Amount.Float64()
	body := createOrderBody{
		OrderID:         req.OrderID,
		OrderAmount:     amount,
		OrderCurrency:   req.Currency,
		CustomerDetails: req.Customer,
		OrderNote:       req.Note,
	}
	if c.cfg.NotifyURL != "" || c.cfg.ReturnURL != "" {
		returnURL := strings.ReplaceAll(c.cfg.ReturnURL, "{order_id}", req.OrderID)
		body.OrderMeta = &orderMeta{NotifyURL: c.cfg.NotifyURL, ReturnURL: returnURL}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("failed to encode order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/orders", bytes.NewReader(payload))
	if err != nil {
		return OrderResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-client-id", c.cfg.AppID)
	httpReq.Header.Set("x-client-secret", c.cfg.SecretKey)
	httpReq.Header.Set("x-api-version", c.cfg.APIVersion)
	httpReq.Header.Set("x-request-id", req.OrderID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("failed to call cashfree: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return OrderResponse{}, fmt.Errorf("cashfree returned status %d: %s", resp.StatusCode, string(errBody))
	}

	var out OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return OrderResponse{}, fmt.Errorf("failed to decode cashfree response: %w", err)
	}
	if out.PaymentSessionID == "" {
		return OrderResponse{}, errors.New("cashfree response missing payment_session_id")
	}
	return out, nil
}
