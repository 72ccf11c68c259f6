package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"tourneyhost/internal/auth"
	"tourneyhost/internal/config"
	"tourneyhost/internal/models"
	"tourneyhost/internal/services"
	"tourneyhost/internal/store"
	"tourneyhost/internal/webhook"
	"tourneyhost/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn        func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string, isAdmin bool) error
	getByEmailFn    func(ctx context.Context, email string) (models.User, error)
	getByUsernameFn func(ctx context.Context, username string) (models.User, error)
	getByIDFn       func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string, isAdmin bool) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash, isAdmin)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	if s.getByUsernameFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, userID)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, error)
	promoteFn     func(ctx context.Context, tx store.Execer, userID string) (int64, error)
	hasAnyAdminFn func(ctx context.Context, tx store.Getter) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if s.isAdminFn == nil {
		return false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) Promote(ctx context.Context, tx store.Execer, userID string) (int64, error) {
	if s.promoteFn == nil {
		return 1, nil
	}
	return s.promoteFn(ctx, tx, userID)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context, tx store.Getter) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx, tx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return []models.AuditLog{}, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubWalletService struct {
	walletFn       func(ctx context.Context, userID string) (models.Wallet, error)
	transactionsFn func(ctx context.Context, userID string, walletType models.WalletType, limit, offset int) ([]models.CreditTransaction, error)
	withdrawFn     func(ctx context.Context, req services.WithdrawalRequest) (models.WithdrawalRequest, error)
	withdrawalsFn  func(ctx context.Context, userID string, limit, offset int) ([]models.WithdrawalRequest, error)
}

func (s stubWalletService) Wallet(ctx context.Context, userID string) (models.Wallet, error) {
	if s.walletFn == nil {
		return models.Wallet{UserID: userID}, nil
	}
	return s.walletFn(ctx, userID)
}

func (s stubWalletService) Transactions(ctx context.Context, userID string, walletType models.WalletType, limit, offset int) ([]models.CreditTransaction, error) {
	if s.transactionsFn == nil {
		return []models.CreditTransaction{}, nil
	}
	return s.transactionsFn(ctx, userID, walletType, limit, offset)
}

func (s stubWalletService) RequestWithdrawal(ctx context.Context, req services.WithdrawalRequest) (models.WithdrawalRequest, error) {
	if s.withdrawFn == nil {
		return models.WithdrawalRequest{}, nil
	}
	return s.withdrawFn(ctx, req)
}

func (s stubWalletService) Withdrawals(ctx context.Context, userID string, limit, offset int) ([]models.WithdrawalRequest, error) {
	if s.withdrawalsFn == nil {
		return []models.WithdrawalRequest{}, nil
	}
	return s.withdrawalsFn(ctx, userID, limit, offset)
}

type stubPaymentService struct {
	createOrderFn func(ctx context.Context, req services.CreateOrderRequest) (services.CreateOrderResult, error)
	getOrderFn    func(ctx context.Context, userID, orderID string) (models.CreditOrder, error)
	listOrdersFn  func(ctx context.Context, userID string, limit, offset int) ([]models.CreditOrder, error)
	webhookFn     func(ctx context.Context, rawBody []byte, event webhook.Event) (services.WebhookOutcome, error)
}

func (s stubPaymentService) CreateOrder(ctx context.Context, req services.CreateOrderRequest) (services.CreateOrderResult, error) {
	if s.createOrderFn == nil {
		return services.CreateOrderResult{}, nil
	}
	return s.createOrderFn(ctx, req)
}

func (s stubPaymentService) GetOrder(ctx context.Context, userID, orderID string) (models.CreditOrder, error) {
	if s.getOrderFn == nil {
		return models.CreditOrder{}, services.ErrOrderNotFound
	}
	return s.getOrderFn(ctx, userID, orderID)
}

func (s stubPaymentService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]models.CreditOrder, error) {
	if s.listOrdersFn == nil {
		return []models.CreditOrder{}, nil
	}
	return s.listOrdersFn(ctx, userID, limit, offset)
}

func (s stubPaymentService) HandleWebhook(ctx context.Context, rawBody []byte, event webhook.Event) (services.WebhookOutcome, error) {
	if s.webhookFn == nil {
		return services.OutcomeIgnored, nil
	}
	return s.webhookFn(ctx, rawBody, event)
}

type stubTournamentService struct {
	createFn       func(ctx context.Context, hostID string, req services.CreateTournamentRequest) (models.Tournament, error)
	joinFn         func(ctx context.Context, userID, tournamentID, ign string) (models.Participant, error)
	startFn        func(ctx context.Context, hostID, tournamentID string) (models.Tournament, error)
	endFn          func(ctx context.Context, hostID, tournamentID string, winners map[string]models.Winner) (models.Tournament, error)
	cancelFn       func(ctx context.Context, hostID, tournamentID string) (models.Tournament, error)
	getFn          func(ctx context.Context, tournamentID string) (models.Tournament, error)
	listFn         func(ctx context.Context, status string, limit, offset int) ([]models.Tournament, error)
	participantsFn func(ctx context.Context, tournamentID string) ([]models.Participant, error)
}

func (s stubTournamentService) Create(ctx context.Context, hostID string, req services.CreateTournamentRequest) (models.Tournament, error) {
	if s.createFn == nil {
		return models.Tournament{}, nil
	}
	return s.createFn(ctx, hostID, req)
}

func (s stubTournamentService) Join(ctx context.Context, userID, tournamentID, ign string) (models.Participant, error) {
	if s.joinFn == nil {
		return models.Participant{}, nil
	}
	return s.joinFn(ctx, userID, tournamentID, ign)
}

func (s stubTournamentService) Start(ctx context.Context, hostID, tournamentID string) (models.Tournament, error) {
	if s.startFn == nil {
		return models.Tournament{}, nil
	}
	return s.startFn(ctx, hostID, tournamentID)
}

func (s stubTournamentService) End(ctx context.Context, hostID, tournamentID string, winners map[string]models.Winner) (models.Tournament, error) {
	if s.endFn == nil {
		return models.Tournament{}, nil
	}
	return s.endFn(ctx, hostID, tournamentID, winners)
}

func (s stubTournamentService) Cancel(ctx context.Context, hostID, tournamentID string) (models.Tournament, error) {
	if s.cancelFn == nil {
		return models.Tournament{}, nil
	}
	return s.cancelFn(ctx, hostID, tournamentID)
}

func (s stubTournamentService) Get(ctx context.Context, tournamentID string) (models.Tournament, error) {
	if s.getFn == nil {
		return models.Tournament{}, services.ErrTournamentNotFound
	}
	return s.getFn(ctx, tournamentID)
}

func (s stubTournamentService) List(ctx context.Context, status string, limit, offset int) ([]models.Tournament, error) {
	if s.listFn == nil {
		return []models.Tournament{}, nil
	}
	return s.listFn(ctx, status, limit, offset)
}

func (s stubTournamentService) Participants(ctx context.Context, tournamentID string) ([]models.Participant, error) {
	if s.participantsFn == nil {
		return []models.Participant{}, nil
	}
	return s.participantsFn(ctx, tournamentID)
}

type stubReconciler struct {
	checkFn func(ctx context.Context, userID string) (services.ReconcileReport, error)
}

func (s stubReconciler) Check(ctx context.Context, userID string) (services.ReconcileReport, error) {
	if s.checkFn == nil {
		return services.ReconcileReport{Drifts: []store.WalletDrift{}}, nil
	}
	return s.checkFn(ctx, userID)
}

// testDeps carries the collaborators for one handler under test. Zero
// values fall back to permissive stubs.
type testDeps struct {
	txRunner    fakeTxRunner
	users       stubUserStore
	admin       stubAdminStore
	audit       stubAuditStore
	wallets     stubWalletService
	payments    stubPaymentService
	tournaments stubTournamentService
	reconciler  stubReconciler
	cashfree    config.CashfreeConfig
}

const testSecret = "secret"

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		Cashfree:       deps.cashfree,
	}
	return New(deps.txRunner, cfg, deps.users, deps.admin, deps.audit, deps.wallets, deps.payments, deps.tournaments, deps.reconciler, websocket.NewHub(), nil)
}

// doRequest sends a request through the full router. An empty userID sends
// no Authorization header.
func doRequest(t *testing.T, handler *Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}
