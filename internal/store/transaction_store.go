package store

import (
	"context"
	"fmt"

	"tourneyhost/internal/models"

	"github.com/shopspring/decimal"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

type TransactionInput struct {
	ID            string
	UserID        string
	Type          string
	WalletType    models.WalletType
	Amount        decimal.Decimal
	Value         decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	PackageID     string
	PaymentID     string
	OrderID       string
	TournamentID  string
}

// Create appends a credit transaction. Rows are immutable once written.
func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	query := `
		INSERT INTO credit_transactions (
			id, user_id, type, wallet_type, amount, value, balance_before, balance_after,
			description, package_id, payment_id, order_id, tournament_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.Type, string(input.WalletType), input.Amount, input.Value,
		input.BalanceBefore, input.BalanceAfter, input.Description,
		nullableString(input.PackageID), nullableString(input.PaymentID),
		nullableString(input.OrderID), nullableString(input.TournamentID),
	)
	return err
}

func (s *TransactionStore) ListByUser(ctx context.Context, userID string, walletType models.WalletType, limit, offset int) ([]models.CreditTransaction, error) {
	rows := []models.CreditTransaction{}
	query := `
		SELECT id, user_id, type, wallet_type, amount, value, balance_before, balance_after,
		       description, package_id, payment_id, order_id, tournament_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
	`
	args := []any{userID}
	param := 2
	if walletType != "" {
		query += " AND wallet_type = $2"
		args = append(args, string(walletType))
		param = 3
	}
	query += " ORDER BY created_at DESC LIMIT $" + itoa(param) + " OFFSET $" + itoa(param+1)
	args = append(args, limit, offset)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func itoa(value int) string {
	return fmt.Sprintf("%d", value)
}
