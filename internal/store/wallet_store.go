package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tourneyhost/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance is returned when a guarded decrement matches no row.
var ErrInsufficientBalance = errors.New("insufficient balance")

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

const walletColumns = `user_id, tournament_credits, host_credits, earnings,
	total_purchased_tournament_credits, total_purchased_host_credits,
	first_purchase_completed, updated_at`

// Ensure creates a zero wallet for userID if none exists.
func (s *WalletStore) Ensure(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

// Get returns the wallet, or a zero wallet when the user has none yet.
func (s *WalletStore) Get(ctx context.Context, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{UserID: userID}, nil
	}
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// Increment adds amount to the wallet field and returns the new balance.
// countPurchase also bumps the lifetime purchase total and marks the first
// purchase complete.
func (s *WalletStore) Increment(ctx context.Context, tx Getter, userID string, wallet models.WalletType, amount decimal.Decimal, countPurchase bool) (decimal.Decimal, error) {
	field := wallet.CreditField()
	if field == "" {
		return decimal.Zero, fmt.Errorf("unknown wallet type %q", wallet)
	}
	set := fmt.Sprintf("%s = %s + $2", field, field)
	if countPurchase {
		total := wallet.PurchaseTotalField()
		if total == "" {
			return decimal.Zero, fmt.Errorf("wallet type %q cannot be purchased", wallet)
		}
		set += fmt.Sprintf(", %s = %s + $2, first_purchase_completed = TRUE", total, total)
	}
	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, `
		UPDATE wallets
		SET `+set+`, updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+field, userID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Decrement subtracts amount only when the balance covers it and returns the
// new balance. ErrInsufficientBalance means no row was changed.
func (s *WalletStore) Decrement(ctx context.Context, tx Getter, userID string, wallet models.WalletType, amount decimal.Decimal) (decimal.Decimal, error) {
	field := wallet.CreditField()
	if field == "" {
		return decimal.Zero, fmt.Errorf("unknown wallet type %q", wallet)
	}
	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, `
		UPDATE wallets
		SET `+field+` = `+field+` - $2, updated_at = NOW()
		WHERE user_id = $1 AND `+field+` >= $2
		RETURNING `+field, userID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrInsufficientBalance
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
