package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"tourneyhost/internal/models"
	"tourneyhost/internal/store"
	"tourneyhost/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// memDB is an in-memory stand-in for Postgres. memTxRunner snapshots it
// before each transaction and restores the snapshot when fn fails, so tests
// observe commit and rollback the way the real stores do.
type memDB struct {
	mu           sync.Mutex
	users        map[string]bool
	wallets      map[string]models.Wallet
	transactions []store.TransactionInput
	orders       map[string]models.CreditOrder
	payloads     map[string]string
	tournaments  map[string]models.Tournament
	participants map[string][]models.Participant
	withdrawals  []models.WithdrawalRequest
	audits       []string

	failTransactionCreate error
	failMarkPaid          error
}

func newMemDB(userIDs ...string) *memDB {
	m := &memDB{
		users:        map[string]bool{},
		wallets:      map[string]models.Wallet{},
		orders:       map[string]models.CreditOrder{},
		payloads:     map[string]string{},
		tournaments:  map[string]models.Tournament{},
		participants: map[string][]models.Participant{},
	}
	for _, id := range userIDs {
		m.users[id] = true
	}
	return m
}

type memSnapshot struct {
	wallets      map[string]models.Wallet
	transactions []store.TransactionInput
	orders       map[string]models.CreditOrder
	payloads     map[string]string
	tournaments  map[string]models.Tournament
	participants map[string][]models.Participant
	withdrawals  []models.WithdrawalRequest
	audits       []string
}

func (m *memDB) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		wallets:      map[string]models.Wallet{},
		transactions: append([]store.TransactionInput(nil), m.transactions...),
		orders:       map[string]models.CreditOrder{},
		payloads:     map[string]string{},
		tournaments:  map[string]models.Tournament{},
		participants: map[string][]models.Participant{},
		withdrawals:  append([]models.WithdrawalRequest(nil), m.withdrawals...),
		audits:       append([]string(nil), m.audits...),
	}
	for k, v := range m.wallets {
		snap.wallets[k] = v
	}
	for k, v := range m.orders {
		snap.orders[k] = v
	}
	for k, v := range m.payloads {
		snap.payloads[k] = v
	}
	for k, v := range m.tournaments {
		snap.tournaments[k] = v
	}
	for k, v := range m.participants {
		snap.participants[k] = append([]models.Participant(nil), v...)
	}
	return snap
}

func (m *memDB) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets = snap.wallets
	m.transactions = snap.transactions
	m.orders = snap.orders
	m.payloads = snap.payloads
	m.tournaments = snap.tournaments
	m.participants = snap.participants
	m.withdrawals = snap.withdrawals
	m.audits = snap.audits
}

func (m *memDB) wallet(userID string) models.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[userID]
}

func (m *memDB) transactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

// ledgerSum adds up the recorded transaction amounts for one wallet.
func (m *memDB) ledgerSum(userID string, wallet models.WalletType) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, tx := range m.transactions {
		if tx.UserID == userID && tx.WalletType == wallet {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum
}

// memTxRunner serializes transactions, which is what SERIALIZABLE plus the
// retry loop amounts to from the caller's point of view.
type memTxRunner struct {
	db   *memDB
	txMu sync.Mutex
	err  error
}

func (r *memTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	if r.err != nil {
		return r.err
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()
	snap := r.db.snapshot()
	if err := fn(nil); err != nil {
		r.db.restore(snap)
		return err
	}
	return nil
}

type memUsers struct{ db *memDB }

func (u memUsers) Exists(_ context.Context, _ store.Getter, userID string) (bool, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	return u.db.users[userID], nil
}

func (u memUsers) GetByID(_ context.Context, userID string) (models.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	if !u.db.users[userID] {
		return models.User{}, sql.ErrNoRows
	}
	return models.User{ID: userID, Username: userID, Email: userID + "@example.com"}, nil
}

type memWallets struct{ db *memDB }

func (w memWallets) Ensure(_ context.Context, _ store.Execer, userID string) error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	if _, ok := w.db.wallets[userID]; !ok {
		w.db.wallets[userID] = models.Wallet{UserID: userID}
	}
	return nil
}

func (w memWallets) Get(_ context.Context, userID string) (models.Wallet, error) {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	wallet, ok := w.db.wallets[userID]
	if !ok {
		return models.Wallet{UserID: userID}, nil
	}
	return wallet, nil
}

func balanceOf(wallet models.Wallet, walletType models.WalletType) decimal.Decimal {
	switch walletType {
	case models.WalletTournament:
		return decimal.NewFromInt(wallet.TournamentCredits)
	case models.WalletHost:
		return decimal.NewFromInt(wallet.HostCredits)
	}
	return wallet.Earnings
}

func setBalance(wallet *models.Wallet, walletType models.WalletType, value decimal.Decimal) {
	switch walletType {
	case models.WalletTournament:
		wallet.TournamentCredits = value.IntPart()
	case models.WalletHost:
		wallet.HostCredits = value.IntPart()
	default:
		wallet.Earnings = value
	}
}

func (w memWallets) Increment(_ context.Context, _ store.Getter, userID string, walletType models.WalletType, amount decimal.Decimal, countPurchase bool) (decimal.Decimal, error) {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	wallet, ok := w.db.wallets[userID]
	if !ok {
		return decimal.Zero, sql.ErrNoRows
	}
	next := balanceOf(wallet, walletType).Add(amount)
	setBalance(&wallet, walletType, next)
	if countPurchase {
		switch walletType {
		case models.WalletTournament:
			wallet.TotalPurchasedTournamentCredits += amount.IntPart()
		case models.WalletHost:
			wallet.TotalPurchasedHostCredits += amount.IntPart()
		}
		wallet.FirstPurchaseCompleted = true
	}
	w.db.wallets[userID] = wallet
	return next, nil
}

func (w memWallets) Decrement(_ context.Context, _ store.Getter, userID string, walletType models.WalletType, amount decimal.Decimal) (decimal.Decimal, error) {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	wallet, ok := w.db.wallets[userID]
	if !ok || balanceOf(wallet, walletType).LessThan(amount) {
		return decimal.Zero, store.ErrInsufficientBalance
	}
	next := balanceOf(wallet, walletType).Sub(amount)
	setBalance(&wallet, walletType, next)
	w.db.wallets[userID] = wallet
	return next, nil
}

// setWallet seeds a balance together with a matching transaction so the
// balance equals the transaction sum from the start.
func (m *memDB) setWallet(userID string, walletType models.WalletType, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wallet := m.wallets[userID]
	wallet.UserID = userID
	before := balanceOf(wallet, walletType)
	setBalance(&wallet, walletType, before.Add(amount))
	m.wallets[userID] = wallet
	m.transactions = append(m.transactions, store.TransactionInput{
		ID:            fmt.Sprintf("seed-%d", len(m.transactions)),
		UserID:        userID,
		Type:          "seed",
		WalletType:    walletType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  before.Add(amount),
	})
}

type memTransactions struct{ db *memDB }

func (t memTransactions) Create(_ context.Context, _ store.Execer, input store.TransactionInput) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.failTransactionCreate != nil {
		return t.db.failTransactionCreate
	}
	t.db.transactions = append(t.db.transactions, input)
	return nil
}

func (t memTransactions) ListByUser(_ context.Context, userID string, walletType models.WalletType, _, _ int) ([]models.CreditTransaction, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	rows := []models.CreditTransaction{}
	for _, tx := range t.db.transactions {
		if tx.UserID != userID || (walletType != "" && tx.WalletType != walletType) {
			continue
		}
		rows = append(rows, models.CreditTransaction{
			ID:            tx.ID,
			UserID:        tx.UserID,
			Type:          tx.Type,
			WalletType:    tx.WalletType,
			Amount:        tx.Amount,
			BalanceBefore: tx.BalanceBefore,
			BalanceAfter:  tx.BalanceAfter,
		})
	}
	return rows, nil
}

type memWithdrawals struct{ db *memDB }

func (w memWithdrawals) Create(_ context.Context, _ store.Execer, req models.WithdrawalRequest) error {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	w.db.withdrawals = append(w.db.withdrawals, req)
	return nil
}

func (w memWithdrawals) ListByUser(_ context.Context, userID string, _, _ int) ([]models.WithdrawalRequest, error) {
	w.db.mu.Lock()
	defer w.db.mu.Unlock()
	rows := []models.WithdrawalRequest{}
	for _, req := range w.db.withdrawals {
		if req.UserID == userID {
			rows = append(rows, req)
		}
	}
	return rows, nil
}

type memAudit struct{ db *memDB }

func (a memAudit) Log(_ context.Context, _ store.Execer, _, action, _, entityID, _ string) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.audits = append(a.db.audits, action+":"+entityID)
	return nil
}

type memOrders struct{ db *memDB }

func (o memOrders) Create(_ context.Context, _ store.Execer, order models.CreditOrder) error {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	if _, ok := o.db.orders[order.ID]; ok {
		return errors.New("duplicate order")
	}
	o.db.orders[order.ID] = order
	return nil
}

func (o memOrders) GetByID(_ context.Context, orderID string) (models.CreditOrder, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	order, ok := o.db.orders[orderID]
	if !ok {
		return models.CreditOrder{}, sql.ErrNoRows
	}
	return order, nil
}

func (o memOrders) GetForUpdate(ctx context.Context, _ store.Getter, orderID string) (models.CreditOrder, error) {
	return o.GetByID(ctx, orderID)
}

func (o memOrders) ListByUser(_ context.Context, userID string, _, _ int) ([]models.CreditOrder, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	rows := []models.CreditOrder{}
	for _, order := range o.db.orders {
		if order.UserID == userID {
			rows = append(rows, order)
		}
	}
	return rows, nil
}

func (o memOrders) SetPaymentSession(_ context.Context, _ store.Execer, orderID, sessionID string) error {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	order := o.db.orders[orderID]
	order.PaymentSessionID = &sessionID
	o.db.orders[orderID] = order
	return nil
}

func (o memOrders) MarkPaid(_ context.Context, _ store.Execer, orderID, paymentID string, payload []byte) (int64, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	if o.db.failMarkPaid != nil {
		return 0, o.db.failMarkPaid
	}
	order, ok := o.db.orders[orderID]
	if !ok || order.Status == models.OrderPaid {
		return 0, nil
	}
	now := time.Now()
	order.Status = models.OrderPaid
	order.PaymentID = &paymentID
	order.PaidAt = &now
	o.db.orders[orderID] = order
	o.db.payloads[orderID] = string(payload)
	return 1, nil
}

func (o memOrders) MarkTerminal(_ context.Context, _ store.Execer, orderID, status string, payload []byte) (int64, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	order, ok := o.db.orders[orderID]
	if !ok || order.Status != models.OrderPending {
		return 0, nil
	}
	order.Status = status
	o.db.orders[orderID] = order
	o.db.payloads[orderID] = string(payload)
	return 1, nil
}

type memTournaments struct{ db *memDB }

func (s memTournaments) Create(_ context.Context, _ store.Execer, t models.Tournament) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.tournaments[t.ID] = t
	return nil
}

func (s memTournaments) GetByID(_ context.Context, id string) (models.Tournament, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tournaments[id]
	if !ok {
		return models.Tournament{}, sql.ErrNoRows
	}
	return t, nil
}

func (s memTournaments) GetForUpdate(ctx context.Context, _ store.Getter, id string) (models.Tournament, error) {
	return s.GetByID(ctx, id)
}

func (s memTournaments) List(_ context.Context, status string, _, _ int) ([]models.Tournament, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rows := []models.Tournament{}
	for _, t := range s.db.tournaments {
		if status == "" || t.Status == status {
			rows = append(rows, t)
		}
	}
	return rows, nil
}

func (s memTournaments) UpdateStatus(_ context.Context, _ store.Execer, id, from, to string, ttl *time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tournaments[id]
	if !ok || t.Status != from {
		return 0, nil
	}
	t.Status = to
	t.TTL = ttl
	s.db.tournaments[id] = t
	return 1, nil
}

func (s memTournaments) SetWinners(_ context.Context, _ store.Execer, id string, winners []byte) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t := s.db.tournaments[id]
	t.Winners = winners
	s.db.tournaments[id] = t
	return nil
}

func (s memTournaments) IncrementFilled(_ context.Context, _ store.Execer, id string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tournaments[id]
	if !ok || t.FilledSpots >= t.MaxPlayers {
		return 0, nil
	}
	t.FilledSpots++
	s.db.tournaments[id] = t
	return 1, nil
}

func (s memTournaments) AddParticipant(_ context.Context, _ store.Execer, p models.Participant) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.participants[p.TournamentID] = append(s.db.participants[p.TournamentID], p)
	return nil
}

func (s memTournaments) IsParticipant(_ context.Context, _ store.Getter, tournamentID, userID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.participants[tournamentID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s memTournaments) ListParticipants(_ context.Context, _ store.Selecter, tournamentID string) ([]models.Participant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return append([]models.Participant(nil), s.db.participants[tournamentID]...), nil
}

type recordingHub struct {
	mu      sync.Mutex
	updates map[string][]websocket.WalletUpdate
}

func newRecordingHub() *recordingHub {
	return &recordingHub{updates: map[string][]websocket.WalletUpdate{}}
}

func (h *recordingHub) BroadcastWallet(userID string, update websocket.WalletUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates[userID] = append(h.updates[userID], update)
}

func (h *recordingHub) count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates[userID])
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

type testEnv struct {
	db        *memDB
	runner    *memTxRunner
	hub       *recordingHub
	publisher *recordingPublisher
	ledger    *Ledger
}

func newTestEnv(userIDs ...string) *testEnv {
	mem := newMemDB(userIDs...)
	runner := &memTxRunner{db: mem}
	hub := newRecordingHub()
	publisher := &recordingPublisher{}
	ledger := NewLedger(runner, memUsers{mem}, memWallets{mem}, memTransactions{mem}, memWithdrawals{mem}, memAudit{mem}).
		WithNotifiers(hub, publisher, nil)
	return &testEnv{db: mem, runner: runner, hub: hub, publisher: publisher, ledger: ledger}
}
