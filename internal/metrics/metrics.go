package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	WebhooksReceived *prometheus.CounterVec
	WebhookDuration  prometheus.Histogram

	CreditsApplied *prometheus.CounterVec
	LedgerErrors   *prometheus.CounterVec

	TournamentsStarted prometheus.Counter
	TournamentsExpired prometheus.Counter
	SweepRuns          *prometheus.CounterVec
	SweepDuration      prometheus.Histogram

	WalletDrift *prometheus.GaugeVec

	SideEffectFailures *prometheus.CounterVec
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhooksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_webhooks_received_total",
			Help: "Cashfree webhooks received, by event type and outcome",
		}, []string{"event_type", "outcome"}),

		WebhookDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tourney_webhook_duration_seconds",
			Help:    "Time spent handling a verified webhook",
			Buckets: prometheus.DefBuckets,
		}),

		CreditsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_credits_applied_total",
			Help: "Credit amounts committed to wallets, by wallet and transaction type",
		}, []string{"wallet_type", "type"}),

		LedgerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_ledger_errors_total",
			Help: "Ledger operations that rolled back",
		}, []string{"operation"}),

		TournamentsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tourney_tournaments_started_total",
			Help: "Tournaments moved to ongoing by the sweeper",
		}),

		TournamentsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "tourney_tournaments_expired_total",
			Help: "Tournaments deleted after their ttl elapsed",
		}),

		SweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_sweep_runs_total",
			Help: "Lifecycle sweeps, by trigger and result",
		}, []string{"trigger", "result"}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tourney_sweep_duration_seconds",
			Help:    "Time spent in one lifecycle sweep",
			Buckets: prometheus.DefBuckets,
		}),

		WalletDrift: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tourney_wallet_drift_wallets",
			Help: "Wallets whose balance disagrees with their transaction sum, by wallet type",
		}, []string{"wallet_type"}),

		SideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_side_effect_failures_total",
			Help: "Best-effort post-commit actions that failed",
		}, []string{"kind"}),
	}
}

func (m *Metrics) Webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhooksReceived.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ObserveWebhook(seconds float64) {
	if m == nil {
		return
	}
	m.WebhookDuration.Observe(seconds)
}

func (m *Metrics) Credit(walletType, txType string, amount float64) {
	if m == nil {
		return
	}
	m.CreditsApplied.WithLabelValues(walletType, txType).Add(amount)
}

func (m *Metrics) LedgerError(operation string) {
	if m == nil {
		return
	}
	m.LedgerErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) Sweep(trigger, result string, seconds float64, started, expired int) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(trigger, result).Inc()
	m.SweepDuration.Observe(seconds)
	m.TournamentsStarted.Add(float64(started))
	m.TournamentsExpired.Add(float64(expired))
}

func (m *Metrics) Drift(walletType string, wallets int) {
	if m == nil {
		return
	}
	m.WalletDrift.WithLabelValues(walletType).Set(float64(wallets))
}

func (m *Metrics) SideEffectFailed(kind string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.WithLabelValues(kind).Inc()
}
