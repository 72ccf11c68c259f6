package services

import (
	"context"
	"fmt"

	"tourneyhost/internal/metrics"
	"tourneyhost/internal/models"
	"tourneyhost/internal/store"

	log "github.com/sirupsen/logrus"
)

type DriftStore interface {
	Drift(ctx context.Context, userID string) ([]store.WalletDrift, error)
}

type ReconcileReport struct {
	WalletsChecked int                 `json:"wallets_checked"`
	Drifts         []store.WalletDrift `json:"drifts"`
}

func (r ReconcileReport) Clean() bool {
	return len(r.Drifts) == 0
}

// Reconciler checks that every wallet balance equals the sum of its
// credit transactions.
type Reconciler struct {
	ledger  DriftStore
	metrics *metrics.Metrics
}

func NewReconciler(ledger DriftStore, m *metrics.Metrics) *Reconciler {
	return &Reconciler{ledger: ledger, metrics: m}
}

// Check compares one user's wallets, or every wallet when userID is empty.
func (r *Reconciler) Check(ctx context.Context, userID string) (ReconcileReport, error) {
	rows, err := r.ledger.Drift(ctx, userID)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("compute wallet drift: %w", err)
	}
	report := ReconcileReport{Drifts: []store.WalletDrift{}}
	users := map[string]struct{}{}
	for _, row := range rows {
		users[row.UserID] = struct{}{}
		if !row.Difference.IsZero() {
			report.Drifts = append(report.Drifts, row)
		}
	}
	report.WalletsChecked = len(users)
	return report, nil
}

// Run checks every wallet, logs each drift and exports the drift gauge.
func (r *Reconciler) Run(ctx context.Context) error {
	report, err := r.Check(ctx, "")
	if err != nil {
		r.metrics.LedgerError("reconcile")
		return err
	}
	perType := map[models.WalletType]int{
		models.WalletTournament: 0,
		models.WalletHost:       0,
		models.WalletEarnings:   0,
	}
	for _, drift := range report.Drifts {
		perType[models.WalletType(drift.WalletType)]++
		log.WithFields(log.Fields{
			"user_id":        drift.UserID,
			"wallet_type":    drift.WalletType,
			"wallet_balance": drift.WalletBalance.String(),
			"ledger_sum":     drift.LedgerSum.String(),
			"difference":     drift.Difference.String(),
		}).Error("wallet balance does not match transaction log")
	}
	for walletType, count := range perType {
		r.metrics.Drift(string(walletType), count)
	}
	log.WithFields(log.Fields{
		"wallets": report.WalletsChecked,
		"drifts":  len(report.Drifts),
	}).Info("wallet reconciliation finished")
	return nil
}
