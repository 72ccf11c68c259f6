package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type WalletType string

const (
	WalletTournament WalletType = "tournament"
	WalletHost       WalletType = "host"
	WalletEarnings   WalletType = "earnings"
)

// CreditField is the wallets column a credit of this type lands in.
func (w WalletType) CreditField() string {
	switch w {
	case WalletTournament:
		return "tournament_credits"
	case WalletHost:
		return "host_credits"
	case WalletEarnings:
		return "earnings"
	}
	return ""
}

// PurchaseTotalField is the lifetime purchase counter bumped by paid orders.
func (w WalletType) PurchaseTotalField() string {
	switch w {
	case WalletTournament:
		return "total_purchased_tournament_credits"
	case WalletHost:
		return "total_purchased_host_credits"
	}
	return ""
}

func (w WalletType) Valid() bool {
	return w == WalletTournament || w == WalletHost || w == WalletEarnings
}

const (
	TxTournamentCreditPurchase = "tournament_credit_purchase"
	TxHostCreditPurchase       = "host_credit_purchase"
	TxTournamentEntry          = "tournament_entry"
	TxTournamentHosting        = "tournament_hosting"
	TxTournamentRefund         = "tournament_refund"
	TxPrizePayout              = "prize_payout"
	TxWithdrawal               = "withdrawal"
)

const (
	OrderPending     = "PENDING"
	OrderPaid        = "PAID"
	OrderFailed      = "FAILED"
	OrderUserDropped = "USER_DROPPED"
)

const (
	TournamentActive    = "active"
	TournamentOngoing   = "ongoing"
	TournamentEnded     = "ended"
	TournamentCompleted = "completed"
	TournamentCancelled = "cancelled"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Wallet struct {
	UserID                          string          `db:"user_id" json:"user_id"`
	TournamentCredits               int64           `db:"tournament_credits" json:"tournament_credits"`
	HostCredits                     int64           `db:"host_credits" json:"host_credits"`
	Earnings                        decimal.Decimal `db:"earnings" json:"earnings"`
	TotalPurchasedTournamentCredits int64           `db:"total_purchased_tournament_credits" json:"total_purchased_tournament_credits"`
	TotalPurchasedHostCredits       int64           `db:"total_purchased_host_credits" json:"total_purchased_host_credits"`
	FirstPurchaseCompleted          bool            `db:"first_purchase_completed" json:"first_purchase_completed"`
	UpdatedAt                       time.Time       `db:"updated_at" json:"updated_at"`
}

type CreditTransaction struct {
	ID            string          `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"user_id"`
	Type          string          `db:"type" json:"type"`
	WalletType    WalletType      `db:"wallet_type" json:"wallet_type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Value         decimal.Decimal `db:"value" json:"value"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description   string          `db:"description" json:"description"`
	PackageID     *string         `db:"package_id" json:"package_id,omitempty"`
	PaymentID     *string         `db:"payment_id" json:"payment_id,omitempty"`
	OrderID       *string         `db:"order_id" json:"order_id,omitempty"`
	TournamentID  *string         `db:"tournament_id" json:"tournament_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

type CreditOrder struct {
	ID               string          `db:"id" json:"id"`
	UserID           string          `db:"user_id" json:"user_id"`
	PackageID        string          `db:"package_id" json:"package_id"`
	PackageType      WalletType      `db:"package_type" json:"package_type"`
	CreditsAmount    int64           `db:"credits_amount" json:"credits_amount"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	Status           string          `db:"status" json:"status"`
	PaymentSessionID *string         `db:"payment_session_id" json:"payment_session_id,omitempty"`
	PaymentID        *string         `db:"payment_id" json:"payment_id,omitempty"`
	PaidAt           *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	FailedAt         *time.Time      `db:"failed_at" json:"failed_at,omitempty"`
	DroppedAt        *time.Time      `db:"dropped_at" json:"dropped_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Winner is one podium slot, keyed by position ("1", "2", ...) in Tournament.Winners.
type Winner struct {
	UserID string `json:"uid"`
	IGN    string `json:"ign"`
}

type Tournament struct {
	ID                string          `db:"id" json:"id"`
	Slug              string          `db:"slug" json:"slug"`
	Name              string          `db:"name" json:"name"`
	HostID            string          `db:"host_id" json:"host_id"`
	Status            string          `db:"status" json:"status"`
	StartDate         time.Time       `db:"start_date" json:"start_date"`
	EntryFee          int64           `db:"entry_fee" json:"entry_fee"`
	MaxPlayers        int             `db:"max_players" json:"max_players"`
	FilledSpots       int             `db:"filled_spots" json:"filled_spots"`
	PrizeDistribution json.RawMessage `db:"prize_distribution" json:"prize_distribution"`
	Winners           json.RawMessage `db:"winners" json:"winners,omitempty"`
	TTL               *time.Time      `db:"ttl" json:"ttl,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Prizes decodes PrizeDistribution (position -> percentage).
func (t Tournament) Prizes() (map[string]decimal.Decimal, error) {
	prizes := map[string]decimal.Decimal{}
	if len(t.PrizeDistribution) == 0 {
		return prizes, nil
	}
	if err := json.Unmarshal(t.PrizeDistribution, &prizes); err != nil {
		return nil, err
	}
	return prizes, nil
}

type Participant struct {
	TournamentID string    `db:"tournament_id" json:"tournament_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	IGN          string    `db:"ign" json:"ign"`
	EntryFee     int64     `db:"entry_fee" json:"entry_fee"`
	JoinedAt     time.Time `db:"joined_at" json:"joined_at"`
}

type WithdrawalRequest struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	UPIID     string          `db:"upi_id" json:"upi_id"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

type AuditLog struct {
	ID          string          `db:"id" json:"id"`
	ActorUserID *string         `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string          `db:"action" json:"action"`
	EntityType  string          `db:"entity_type" json:"entity_type"`
	EntityID    string          `db:"entity_id" json:"entity_id"`
	Data        json.RawMessage `db:"data" json:"data"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
