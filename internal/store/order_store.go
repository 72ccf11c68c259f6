package store

import (
	"context"
	"fmt"

	"tourneyhost/internal/models"
)

type OrderStore struct {
	db DB
}

func NewOrderStore(db DB) *OrderStore {
	return &OrderStore{db: db}
}

const orderColumns = `id, user_id, package_id, package_type, credits_amount, amount, currency, status,
	payment_session_id, payment_id, paid_at, failed_at, dropped_at, created_at, updated_at`

func (s *OrderStore) Create(ctx context.Context, tx Execer, order models.CreditOrder) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_orders (id, user_id, package_id, package_type, credits_amount, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.UserID, order.PackageID, string(order.PackageType), order.CreditsAmount,
		order.Amount, order.Currency, order.Status)
	return err
}

func (s *OrderStore) GetByID(ctx context.Context, orderID string) (models.CreditOrder, error) {
	var row models.CreditOrder
	err := s.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM credit_orders WHERE id = $1`, orderID)
	return row, err
}

// GetForUpdate locks the order row so concurrent deliveries of the same
// webhook serialize on it.
func (s *OrderStore) GetForUpdate(ctx context.Context, tx Getter, orderID string) (models.CreditOrder, error) {
	var row models.CreditOrder
	err := tx.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM credit_orders WHERE id = $1 FOR UPDATE`, orderID)
	return row, err
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.CreditOrder, error) {
	rows := []models.CreditOrder{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+`
		FROM credit_orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *OrderStore) SetPaymentSession(ctx context.Context, tx Execer, orderID, sessionID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credit_orders
		SET payment_session_id = $2, updated_at = NOW()
		WHERE id = $1
	`, orderID, sessionID)
	return err
}

// MarkPaid moves a not-yet-paid order to PAID. It reports the number of
// rows changed; zero means another delivery already paid it.
func (s *OrderStore) MarkPaid(ctx context.Context, tx Execer, orderID, paymentID string, payload []byte) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_orders
		SET status = 'PAID', payment_id = $2, paid_at = NOW(), webhook_data = $3, updated_at = NOW()
		WHERE id = $1 AND status <> 'PAID'
	`, orderID, nullableString(paymentID), string(payload))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkTerminal moves a PENDING order to FAILED or USER_DROPPED.
func (s *OrderStore) MarkTerminal(ctx context.Context, tx Execer, orderID, status string, payload []byte) (int64, error) {
	var stamp string
	switch status {
	case models.OrderFailed:
		stamp = "failed_at"
	case models.OrderUserDropped:
		stamp = "dropped_at"
	default:
		return 0, fmt.Errorf("unsupported terminal status %q", status)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_orders
		SET status = $2, `+stamp+` = NOW(), webhook_data = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`, orderID, status, string(payload))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
