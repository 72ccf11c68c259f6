package handlers

import (
	"context"

	"tourneyhost/internal/models"
	"tourneyhost/internal/services"
	"tourneyhost/internal/store"
	"tourneyhost/internal/webhook"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string, isAdmin bool) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
	Promote(ctx context.Context, tx store.Execer, userID string) (int64, error)
	HasAnyAdmin(ctx context.Context, tx store.Getter) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

type WalletService interface {
	Wallet(ctx context.Context, userID string) (models.Wallet, error)
	Transactions(ctx context.Context, userID string, walletType models.WalletType, limit, offset int) ([]models.CreditTransaction, error)
	RequestWithdrawal(ctx context.Context, req services.WithdrawalRequest) (models.WithdrawalRequest, error)
	Withdrawals(ctx context.Context, userID string, limit, offset int) ([]models.WithdrawalRequest, error)
}

type PaymentService interface {
	CreateOrder(ctx context.Context, req services.CreateOrderRequest) (services.CreateOrderResult, error)
	GetOrder(ctx context.Context, userID, orderID string) (models.CreditOrder, error)
	ListOrders(ctx context.Context, userID string, limit, offset int) ([]models.CreditOrder, error)
	HandleWebhook(ctx context.Context, rawBody []byte, event webhook.Event) (services.WebhookOutcome, error)
}

type TournamentService interface {
	Create(ctx context.Context, hostID string, req services.CreateTournamentRequest) (models.Tournament, error)
	Join(ctx context.Context, userID, tournamentID, ign string) (models.Participant, error)
	Start(ctx context.Context, hostID, tournamentID string) (models.Tournament, error)
	End(ctx context.Context, hostID, tournamentID string, winners map[string]models.Winner) (models.Tournament, error)
	Cancel(ctx context.Context, hostID, tournamentID string) (models.Tournament, error)
	Get(ctx context.Context, tournamentID string) (models.Tournament, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Tournament, error)
	Participants(ctx context.Context, tournamentID string) ([]models.Participant, error)
}

type Reconciler interface {
	Check(ctx context.Context, userID string) (services.ReconcileReport, error)
}
