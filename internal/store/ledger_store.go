package store

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerStore answers reconciliation questions across wallets and the
// credit transaction log.
type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type WalletDrift struct {
	UserID        string          `db:"user_id" json:"user_id"`
	WalletType    string          `db:"wallet_type" json:"wallet_type"`
	WalletBalance decimal.Decimal `db:"wallet_balance" json:"wallet_balance"`
	LedgerSum     decimal.Decimal `db:"ledger_sum" json:"ledger_sum"`
	Difference    decimal.Decimal `db:"difference" json:"difference"`
}

// Drift compares each wallet balance with the sum of that user's
// transactions of the same wallet type. An empty userID checks every wallet.
func (s *LedgerStore) Drift(ctx context.Context, userID string) ([]WalletDrift, error) {
	rows := []WalletDrift{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT w.user_id,
		       v.wallet_type,
		       v.wallet_balance,
		       COALESCE(t.ledger_sum, 0) AS ledger_sum,
		       (v.wallet_balance - COALESCE(t.ledger_sum, 0)) AS difference
		FROM wallets w
		CROSS JOIN LATERAL (
			VALUES ('tournament', w.tournament_credits::numeric),
			       ('host', w.host_credits::numeric),
			       ('earnings', w.earnings)
		) AS v (wallet_type, wallet_balance)
		LEFT JOIN (
			SELECT user_id, wallet_type, SUM(amount) AS ledger_sum
			FROM credit_transactions
			GROUP BY user_id, wallet_type
		) t ON t.user_id = w.user_id AND t.wallet_type = v.wallet_type
		WHERE ($1::text = '' OR w.user_id = $1::text)
		ORDER BY w.user_id, v.wallet_type
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
