package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tourneyhost/internal/db"
	"tourneyhost/internal/events"
	"tourneyhost/internal/metrics"
	"tourneyhost/internal/models"
	"tourneyhost/internal/money"
	"tourneyhost/internal/store"
	"tourneyhost/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Ledger is the only writer of wallet balances. Every mutation pairs an
// atomic increment or guarded decrement with an immutable transaction row in
// the same SQL transaction.
type Ledger struct {
	txRunner     db.TxRunner
	users        UserLookup
	wallets      WalletStore
	transactions TransactionStore
	withdrawals  WithdrawalStore
	audit        AuditStore

	hub       WalletHub
	publisher events.Publisher
	metrics   *metrics.Metrics
}

type UserLookup interface {
	Exists(ctx context.Context, tx store.Getter, userID string) (bool, error)
}

type WalletStore interface {
	Ensure(ctx context.Context, tx store.Execer, userID string) error
	Get(ctx context.Context, userID string) (models.Wallet, error)
	Increment(ctx context.Context, tx store.Getter, userID string, wallet models.WalletType, amount decimal.Decimal, countPurchase bool) (decimal.Decimal, error)
	Decrement(ctx context.Context, tx store.Getter, userID string, wallet models.WalletType, amount decimal.Decimal) (decimal.Decimal, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	ListByUser(ctx context.Context, userID string, walletType models.WalletType, limit, offset int) ([]models.CreditTransaction, error)
}

type WithdrawalStore interface {
	Create(ctx context.Context, tx store.Execer, w models.WithdrawalRequest) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.WithdrawalRequest, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type WalletHub interface {
	BroadcastWallet(userID string, update websocket.WalletUpdate)
}

func NewLedger(txRunner db.TxRunner, users UserLookup, wallets WalletStore, transactions TransactionStore, withdrawals WithdrawalStore, audit AuditStore) *Ledger {
	return &Ledger{
		txRunner:     txRunner,
		users:        users,
		wallets:      wallets,
		transactions: transactions,
		withdrawals:  withdrawals,
		audit:        audit,
		publisher:    events.NopPublisher{},
	}
}

// WithNotifiers attaches the post-commit sinks. Any of them may be nil.
func (l *Ledger) WithNotifiers(hub WalletHub, publisher events.Publisher, m *metrics.Metrics) *Ledger {
	l.hub = hub
	if publisher != nil {
		l.publisher = publisher
	}
	l.metrics = m
	return l
}

type CreditDetails struct {
	PackageID   string
	PaymentID   string
	OrderID     string
	Value       decimal.Decimal
	Description string
}

type CreditRequest struct {
	UserID     string
	Amount     int64
	CreditType models.WalletType
	Details    CreditDetails
}

type CreditResult struct {
	TransactionID string            `json:"transaction_id"`
	UserID        string            `json:"user_id"`
	Type          string            `json:"type"`
	WalletType    models.WalletType `json:"wallet_type"`
	Amount        decimal.Decimal   `json:"amount"`
	BalanceBefore decimal.Decimal   `json:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	TournamentID  string            `json:"tournament_id,omitempty"`
	OrderID       string            `json:"order_id,omitempty"`
}

type entry struct {
	userID        string
	wallet        models.WalletType
	txType        string
	amount        decimal.Decimal
	debit         bool
	countPurchase bool
	value         decimal.Decimal
	description   string
	packageID     string
	paymentID     string
	orderID       string
	tournamentID  string
}

// AddCredits credits purchased tournament or host credits in its own
// transaction. The error is the failure signal; nothing is written when it
// is non-nil.
func (l *Ledger) AddCredits(ctx context.Context, req CreditRequest) (CreditResult, error) {
	var result CreditResult
	err := l.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = l.AddCreditsTx(ctx, tx, req)
		return err
	})
	if err != nil {
		l.metrics.LedgerError("add_credits")
		return CreditResult{}, err
	}
	l.Committed(ctx, "purchase", result)
	return result, nil
}

// AddCreditsTx is AddCredits on a caller-owned transaction. The user must
// already exist; only the wallet row is created on demand.
func (l *Ledger) AddCreditsTx(ctx context.Context, tx store.Tx, req CreditRequest) (CreditResult, error) {
	if req.Amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	var txType string
	switch req.CreditType {
	case models.WalletTournament:
		txType = models.TxTournamentCreditPurchase
	case models.WalletHost:
		txType = models.TxHostCreditPurchase
	default:
		return CreditResult{}, ErrInvalidCreditType
	}
	description := req.Details.Description
	if description == "" {
		description = fmt.Sprintf("Purchased %d %s credits", req.Amount, req.CreditType)
	}
	return l.apply(ctx, tx, entry{
		userID:        req.UserID,
		wallet:        req.CreditType,
		txType:        txType,
		amount:        decimal.NewFromInt(req.Amount),
		countPurchase: true,
		value:         req.Details.Value,
		description:   description,
		packageID:     req.Details.PackageID,
		paymentID:     req.Details.PaymentID,
		orderID:       req.Details.OrderID,
	})
}

type DebitRequest struct {
	UserID       string
	Amount       int64
	WalletType   models.WalletType
	Type         string
	TournamentID string
	Description  string
}

// DebitCreditsTx spends credits. The decrement is guarded so a balance can
// never go below zero; ErrInsufficientCredits means nothing changed.
func (l *Ledger) DebitCreditsTx(ctx context.Context, tx store.Tx, req DebitRequest) (CreditResult, error) {
	if req.Amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	if req.WalletType != models.WalletTournament && req.WalletType != models.WalletHost {
		return CreditResult{}, ErrInvalidCreditType
	}
	amount := decimal.NewFromInt(req.Amount)
	return l.apply(ctx, tx, entry{
		userID:       req.UserID,
		wallet:       req.WalletType,
		txType:       req.Type,
		amount:       amount,
		debit:        true,
		value:        amount,
		description:  req.Description,
		tournamentID: req.TournamentID,
	})
}

// RefundCreditsTx returns credits without touching lifetime purchase totals.
func (l *Ledger) RefundCreditsTx(ctx context.Context, tx store.Tx, userID string, amount int64, wallet models.WalletType, tournamentID, description string) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	if wallet != models.WalletTournament && wallet != models.WalletHost {
		return CreditResult{}, ErrInvalidCreditType
	}
	value := decimal.NewFromInt(amount)
	return l.apply(ctx, tx, entry{
		userID:       userID,
		wallet:       wallet,
		txType:       models.TxTournamentRefund,
		amount:       value,
		value:        value,
		description:  description,
		tournamentID: tournamentID,
	})
}

// CreditEarningsTx pays a prize into the real-money earnings wallet.
func (l *Ledger) CreditEarningsTx(ctx context.Context, tx store.Tx, userID string, amount decimal.Decimal, tournamentID, description string) (CreditResult, error) {
	if !amount.IsPositive() {
		return CreditResult{}, ErrInvalidAmount
	}
	return l.apply(ctx, tx, entry{
		userID:       userID,
		wallet:       models.WalletEarnings,
		txType:       models.TxPrizePayout,
		amount:       amount,
		value:        amount,
		description:  description,
		tournamentID: tournamentID,
	})
}

func (l *Ledger) apply(ctx context.Context, tx store.Tx, e entry) (CreditResult, error) {
	var after decimal.Decimal
	var err error
	if e.debit {
		after, err = l.wallets.Decrement(ctx, tx, e.userID, e.wallet, e.amount)
		if errors.Is(err, store.ErrInsufficientBalance) {
			if e.wallet == models.WalletEarnings {
				return CreditResult{}, ErrInsufficientEarnings
			}
			return CreditResult{}, ErrInsufficientCredits
		}
		if err != nil {
			return CreditResult{}, fmt.Errorf("debit %s wallet: %w", e.wallet, err)
		}
	} else {
		exists, err := l.users.Exists(ctx, tx, e.userID)
		if err != nil {
			return CreditResult{}, fmt.Errorf("lookup user: %w", err)
		}
		if !exists {
			return CreditResult{}, ErrUserNotFound
		}
		if err := l.wallets.Ensure(ctx, tx, e.userID); err != nil {
			return CreditResult{}, fmt.Errorf("ensure wallet: %w", err)
		}
		after, err = l.wallets.Increment(ctx, tx, e.userID, e.wallet, e.amount, e.countPurchase)
		if err != nil {
			return CreditResult{}, fmt.Errorf("credit %s wallet: %w", e.wallet, err)
		}
	}

	signed := e.amount
	if e.debit {
		signed = e.amount.Neg()
	}
	// balance_after comes from the RETURNING clause of the same statement
	// that changed the wallet, so before/after are exact under concurrency.
	before := after.Sub(signed)
	id := uuid.NewString()
	if err := l.transactions.Create(ctx, tx, store.TransactionInput{
		ID:            id,
		UserID:        e.userID,
		Type:          e.txType,
		WalletType:    e.wallet,
		Amount:        signed,
		Value:         e.value,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   e.description,
		PackageID:     e.packageID,
		PaymentID:     e.paymentID,
		OrderID:       e.orderID,
		TournamentID:  e.tournamentID,
	}); err != nil {
		return CreditResult{}, fmt.Errorf("record transaction: %w", err)
	}
	return CreditResult{
		TransactionID: id,
		UserID:        e.userID,
		Type:          e.txType,
		WalletType:    e.wallet,
		Amount:        signed,
		BalanceBefore: before,
		BalanceAfter:  after,
		TournamentID:  e.tournamentID,
		OrderID:       e.orderID,
	}, nil
}

// Committed runs the best-effort side effects for results whose transaction
// has committed: metrics, an event per result and one wallet push per user.
func (l *Ledger) Committed(ctx context.Context, reason string, results ...CreditResult) {
	notified := map[string]struct{}{}
	for _, result := range results {
		amount, _ := result.Amount.Abs().Float64()
		l.metrics.Credit(string(result.WalletType), result.Type, amount)
		subject := events.SubjectWalletCredited
		if result.Amount.IsNegative() {
			subject = events.SubjectWalletDebited
		}
		if err := l.publisher.Publish(ctx, subject, result); err != nil {
			l.metrics.SideEffectFailed("event")
			log.WithError(err).WithField("transaction_id", result.TransactionID).Warn("failed to publish wallet event")
		}
		if _, ok := notified[result.UserID]; ok {
			continue
		}
		notified[result.UserID] = struct{}{}
		l.Notify(ctx, result.UserID, reason)
	}
}

// Notify pushes the committed wallet to the user's open sockets.
func (l *Ledger) Notify(ctx context.Context, userID, reason string) {
	if l.hub == nil {
		return
	}
	wallet, err := l.wallets.Get(ctx, userID)
	if err != nil {
		l.metrics.SideEffectFailed("websocket")
		log.WithError(err).WithField("user_id", userID).Warn("failed to load wallet for push")
		return
	}
	l.hub.BroadcastWallet(userID, websocket.WalletUpdate{
		TournamentCredits: wallet.TournamentCredits,
		HostCredits:       wallet.HostCredits,
		Earnings:          money.FormatRupees(wallet.Earnings),
		Reason:            reason,
	})
}

func (l *Ledger) Wallet(ctx context.Context, userID string) (models.Wallet, error) {
	return l.wallets.Get(ctx, userID)
}

func (l *Ledger) Transactions(ctx context.Context, userID string, walletType models.WalletType, limit, offset int) ([]models.CreditTransaction, error) {
	if walletType != "" && !walletType.Valid() {
		return nil, ErrInvalidCreditType
	}
	return l.transactions.ListByUser(ctx, userID, walletType, limit, offset)
}

type WithdrawalRequest struct {
	UserID string
	Amount decimal.Decimal
	UPIID  string
}

// RequestWithdrawal moves earnings into a pending payout request.
func (l *Ledger) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (models.WithdrawalRequest, error) {
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(2)) {
		return models.WithdrawalRequest{}, ErrInvalidAmount
	}
	upi := strings.TrimSpace(req.UPIID)
	if upi == "" {
		return models.WithdrawalRequest{}, ErrInvalidUPI
	}
	withdrawal := models.WithdrawalRequest{
		ID:     uuid.NewString(),
		UserID: req.UserID,
		Amount: req.Amount,
		UPIID:  upi,
		Status: "PENDING",
	}
	var result CreditResult
	err := l.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = l.apply(ctx, tx, entry{
			userID:      req.UserID,
			wallet:      models.WalletEarnings,
			txType:      models.TxWithdrawal,
			amount:      req.Amount,
			debit:       true,
			value:       req.Amount,
			description: "Withdrawal to " + upi,
		})
		if err != nil {
			return err
		}
		if err := l.withdrawals.Create(ctx, tx, withdrawal); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"withdrawal_id":  withdrawal.ID,
			"amount":         money.FormatRupees(req.Amount),
			"transaction_id": result.TransactionID,
		})
		return l.audit.Log(ctx, tx, req.UserID, "wallet.withdrawal_requested", "withdrawal", withdrawal.ID, string(data))
	})
	if err != nil {
		if !errors.Is(err, ErrInsufficientEarnings) {
			l.metrics.LedgerError("withdrawal")
		}
		return models.WithdrawalRequest{}, err
	}
	l.Committed(ctx, "withdrawal", result)
	return withdrawal, nil
}

func (l *Ledger) Withdrawals(ctx context.Context, userID string, limit, offset int) ([]models.WithdrawalRequest, error) {
	return l.withdrawals.ListByUser(ctx, userID, limit, offset)
}
