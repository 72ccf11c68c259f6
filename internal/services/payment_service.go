package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tourneyhost/internal/archive"
	"tourneyhost/internal/cache"
	"tourneyhost/internal/db"
	"tourneyhost/internal/events"
	"tourneyhost/internal/gateway"
	"tourneyhost/internal/metrics"
	"tourneyhost/internal/models"
	"tourneyhost/internal/store"
	"tourneyhost/internal/webhook"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

const sideEffectTimeout = 5 * time.Second

type OrderStore interface {
	Create(ctx context.Context, tx store.Execer, order models.CreditOrder) error
	GetByID(ctx context.Context, orderID string) (models.CreditOrder, error)
	GetForUpdate(ctx context.Context, tx store.Getter, orderID string) (models.CreditOrder, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.CreditOrder, error)
	SetPaymentSession(ctx context.Context, tx store.Execer, orderID, sessionID string) error
	MarkPaid(ctx context.Context, tx store.Execer, orderID, paymentID string, payload []byte) (int64, error)
	MarkTerminal(ctx context.Context, tx store.Execer, orderID, status string, payload []byte) (int64, error)
}

type UserReader interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type Gateway interface {
	Configured() bool
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (gateway.OrderResponse, error)
}

// WebhookOutcome describes what a verified webhook did. Every outcome is
// acknowledged with 200.
type WebhookOutcome string

const (
	OutcomeCredited         WebhookOutcome = "credited"
	OutcomeAlreadyProcessed WebhookOutcome = "already_processed"
	OutcomeNotCreditOrder   WebhookOutcome = "not_credit_order"
	OutcomeMarkedFailed     WebhookOutcome = "marked_failed"
	OutcomeMarkedDropped    WebhookOutcome = "marked_dropped"
	OutcomeNoTransition     WebhookOutcome = "no_transition"
	OutcomeIgnored          WebhookOutcome = "ignored"
)

type PaymentService struct {
	txRunner db.TxRunner
	orders   OrderStore
	ledger   *Ledger
	users    UserReader
	gateway  Gateway

	marker    cache.OrderMarker
	archiver  archive.Archiver
	publisher events.Publisher
	metrics   *metrics.Metrics
}

func NewPaymentService(txRunner db.TxRunner, orders OrderStore, ledger *Ledger, users UserReader, gw Gateway) *PaymentService {
	return &PaymentService{
		txRunner:  txRunner,
		orders:    orders,
		ledger:    ledger,
		users:     users,
		gateway:   gw,
		marker:    cache.NopOrderMarker{},
		archiver:  archive.NopArchiver{},
		publisher: events.NopPublisher{},
	}
}

// WithSideEffects attaches the post-commit collaborators. Nil values keep
// the no-op defaults.
func (s *PaymentService) WithSideEffects(marker cache.OrderMarker, archiver archive.Archiver, publisher events.Publisher, m *metrics.Metrics) *PaymentService {
	if marker != nil {
		s.marker = marker
	}
	if archiver != nil {
		s.archiver = archiver
	}
	if publisher != nil {
		s.publisher = publisher
	}
	s.metrics = m
	return s
}

type CreateOrderRequest struct {
	UserID    string
	PackageID string
	Phone     string
}

type CreateOrderResult struct {
	Order            models.CreditOrder `json:"order"`
	Package          CreditPackage      `json:"package"`
	PaymentSessionID string             `json:"payment_session_id,omitempty"`
}

// CreateOrder records a PENDING order for a catalog package and, when
// gateway credentials are configured, opens a Cashfree checkout session.
func (s *PaymentService) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error) {
	pkg, ok := FindPackage(req.PackageID)
	if !ok {
		return CreateOrderResult{}, ErrUnknownPackage
	}
	checkout := s.gateway != nil && s.gateway.Configured()
	if checkout && req.Phone == "" {
		return CreateOrderResult{}, ErrPhoneRequired
	}
	user, err := s.users.GetByID(ctx, req.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return CreateOrderResult{}, ErrUserNotFound
	}
	if err != nil {
		return CreateOrderResult{}, err
	}

	order := models.CreditOrder{
		ID:            "order_" + uuid.NewString(),
		UserID:        req.UserID,
		PackageID:     pkg.ID,
		PackageType:   pkg.Type,
		CreditsAmount: pkg.Credits,
		Amount:        pkg.Price,
		Currency:      pkg.Currency,
		Status:        models.OrderPending,
	}
	if err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.orders.Create(ctx, tx, order)
	}); err != nil {
		return CreateOrderResult{}, fmt.Errorf("create order: %w", err)
	}
	result := CreateOrderResult{Order: order, Package: pkg}
	if !checkout {
		return result, nil
	}

	resp, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		OrderID:  order.ID,
		Amount:   pkg.Price,
		Currency: pkg.Currency,
		Customer: gateway.Customer{
			ID:    user.ID,
			Email: user.Email,
			Phone: req.Phone,
			Name:  user.Username,
		},
		Note: pkg.Label,
	})
	if err != nil {
		log.WithError(err).WithField("order_id", order.ID).Error("gateway order creation failed")
		if markErr := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			_, err := s.orders.MarkTerminal(ctx, tx, order.ID, models.OrderFailed, []byte(`{"reason":"gateway_order_failed"}`))
			return err
		}); markErr != nil {
			log.WithError(markErr).WithField("order_id", order.ID).Error("failed to mark order failed")
		}
		return CreateOrderResult{}, fmt.Errorf("create gateway order: %w", err)
	}
	if err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.orders.SetPaymentSession(ctx, tx, order.ID, resp.PaymentSessionID)
	}); err != nil {
		return CreateOrderResult{}, fmt.Errorf("store payment session: %w", err)
	}
	result.Order.PaymentSessionID = &resp.PaymentSessionID
	result.PaymentSessionID = resp.PaymentSessionID
	return result, nil
}

func (s *PaymentService) GetOrder(ctx context.Context, userID, orderID string) (models.CreditOrder, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CreditOrder{}, ErrOrderNotFound
	}
	if err != nil {
		return models.CreditOrder{}, err
	}
	if order.UserID != userID {
		return models.CreditOrder{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *PaymentService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]models.CreditOrder, error) {
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// HandleWebhook applies a verified Cashfree event. rawBody is the exact
// request body; it is stored with the order for audit.
func (s *PaymentService) HandleWebhook(ctx context.Context, rawBody []byte, event webhook.Event) (WebhookOutcome, error) {
	orderID := event.OrderID()
	var outcome WebhookOutcome
	var err error
	switch event.Type {
	case webhook.EventPaymentSuccess:
		outcome, err = s.handleSuccess(ctx, orderID, rawBody, event)
	case webhook.EventPaymentFailed:
		outcome, err = s.handleTerminal(ctx, orderID, models.OrderFailed, rawBody)
	case webhook.EventPaymentUserDropped:
		outcome, err = s.handleTerminal(ctx, orderID, models.OrderUserDropped, rawBody)
	default:
		log.WithField("type", event.Type).Info("ignoring unhandled webhook type")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return outcome, err
	}
	if orderID != "" && outcome != OutcomeNotCreditOrder {
		s.archive(ctx, orderID, rawBody)
	}
	return outcome, nil
}

func (s *PaymentService) handleSuccess(ctx context.Context, orderID string, rawBody []byte, event webhook.Event) (WebhookOutcome, error) {
	if orderID == "" {
		return OutcomeNotCreditOrder, nil
	}
	processed, err := s.marker.IsProcessed(ctx, orderID)
	if err != nil {
		s.metrics.SideEffectFailed("cache")
		log.WithError(err).WithField("order_id", orderID).Warn("processed-order lookup failed")
	}
	if processed {
		return OutcomeAlreadyProcessed, nil
	}

	paymentID := event.PaymentID()
	var outcome WebhookOutcome
	var result CreditResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		outcome = ""
		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if errors.Is(err, sql.ErrNoRows) {
			outcome = OutcomeNotCreditOrder
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.Status == models.OrderPaid {
			outcome = OutcomeAlreadyProcessed
			return nil
		}
		result, err = s.ledger.AddCreditsTx(ctx, tx, CreditRequest{
			UserID:     order.UserID,
			Amount:     order.CreditsAmount,
			CreditType: order.PackageType,
			Details: CreditDetails{
				PackageID: order.PackageID,
				PaymentID: paymentID,
				OrderID:   order.ID,
				Value:     order.Amount,
			},
		})
		if err != nil {
			return fmt.Errorf("add credits: %w", err)
		}
		updated, err := s.orders.MarkPaid(ctx, tx, order.ID, paymentID, rawBody)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		if updated == 0 {
			return fmt.Errorf("mark order paid: %w", store.ErrNoRowsAffected)
		}
		outcome = OutcomeCredited
		return nil
	})
	if err != nil {
		s.metrics.LedgerError("webhook_credit")
		return "", err
	}
	if outcome != OutcomeCredited {
		return outcome, nil
	}

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.marker.MarkProcessed(sideCtx, orderID); err != nil {
		s.metrics.SideEffectFailed("cache")
		log.WithError(err).WithField("order_id", orderID).Warn("failed to mark order processed")
	}
	s.ledger.Committed(sideCtx, "purchase", result)
	log.WithFields(log.Fields{
		"order_id":      orderID,
		"user_id":       result.UserID,
		"wallet_type":   result.WalletType,
		"amount":        result.Amount.String(),
		"balance_after": result.BalanceAfter.String(),
	}).Info("credits applied from payment webhook")
	return OutcomeCredited, nil
}

func (s *PaymentService) handleTerminal(ctx context.Context, orderID, status string, rawBody []byte) (WebhookOutcome, error) {
	if orderID == "" {
		return OutcomeNotCreditOrder, nil
	}
	var outcome WebhookOutcome
	var userID string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		outcome = ""
		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if errors.Is(err, sql.ErrNoRows) {
			outcome = OutcomeNotCreditOrder
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		userID = order.UserID
		updated, err := s.orders.MarkTerminal(ctx, tx, orderID, status, rawBody)
		if err != nil {
			return fmt.Errorf("mark order %s: %w", status, err)
		}
		switch {
		case updated == 0:
			outcome = OutcomeNoTransition
		case status == models.OrderFailed:
			outcome = OutcomeMarkedFailed
		default:
			outcome = OutcomeMarkedDropped
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if outcome == OutcomeMarkedFailed || outcome == OutcomeMarkedDropped {
		sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
		defer cancel()
		payload := map[string]string{"order_id": orderID, "user_id": userID, "status": status}
		if err := s.publisher.Publish(sideCtx, events.SubjectOrderTerminal, payload); err != nil {
			s.metrics.SideEffectFailed("event")
			log.WithError(err).WithField("order_id", orderID).Warn("failed to publish order event")
		}
		log.WithFields(log.Fields{"order_id": orderID, "status": status}).Info("order moved to terminal status")
	}
	return outcome, nil
}

func (s *PaymentService) archive(ctx context.Context, orderID string, rawBody []byte) {
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.archiver.Archive(sideCtx, "webhooks", orderID, rawBody); err != nil {
		s.metrics.SideEffectFailed("archive")
		log.WithError(err).WithField("order_id", orderID).Warn("failed to archive webhook payload")
	}
}
