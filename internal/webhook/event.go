package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	EventPaymentSuccess     = "PAYMENT_SUCCESS_WEBHOOK"
	EventPaymentFailed      = "PAYMENT_FAILED_WEBHOOK"
	EventPaymentUserDropped = "PAYMENT_USER_DROPPED_WEBHOOK"
)

// Event is the Cashfree payment webhook envelope.
type Event struct {
	Type      string    `json:"type"`
	EventTime string    `json:"event_time"`
	Data      EventData `json:"data"`
}

type EventData struct {
	Order        Order         `json:"order"`
	Payment      Payment       `json:"payment"`
	ErrorDetails *ErrorDetails `json:"error_details,omitempty"`
}

type Order struct {
	OrderID       string          `json:"order_id"`
	OrderAmount   decimal.Decimal `json:"order_amount"`
	OrderCurrency string          `json:"order_currency"`
}

type Payment struct {
	PaymentID     FlexibleID      `json:"payment_id"`
	CFPaymentID   FlexibleID      `json:"cf_payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
}

// FlexibleID accepts an identifier sent either as a JSON string or a number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*f = FlexibleID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*f = FlexibleID(number.String())
	return nil
}

type ErrorDetails struct {
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	ErrorReason      string `json:"error_reason"`
}

// Parse decodes the envelope. Unknown event types parse fine; only a body
// that is not a JSON object fails.
func Parse(rawBody []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return Event{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	return event, nil
}

func (e Event) OrderID() string {
	return e.Data.Order.OrderID
}

func (e Event) PaymentID() string {
	if e.Data.Payment.PaymentID != "" {
		return string(e.Data.Payment.PaymentID)
	}
	return string(e.Data.Payment.CFPaymentID)
}
