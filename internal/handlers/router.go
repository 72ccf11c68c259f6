package handlers

import (
	"net/http"
	"strings"

	"tourneyhost/internal/config"
	"tourneyhost/internal/db"
	"tourneyhost/internal/metrics"
	"tourneyhost/internal/middleware"
	"tourneyhost/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	txRunner    db.TxRunner
	cfg         config.Config
	users       UserStore
	admin       AdminStore
	audit       AuditStore
	wallets     WalletService
	payments    PaymentService
	tournaments TournamentService
	reconciler  Reconciler
	hub         *websocket.Hub
	upgrader    *gorillaws.Upgrader
	metrics     *metrics.Metrics
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, admin AdminStore, audit AuditStore, wallets WalletService, payments PaymentService, tournaments TournamentService, reconciler Reconciler, hub *websocket.Hub, m *metrics.Metrics) *Handler {
	return &Handler{
		txRunner:    txRunner,
		cfg:         cfg,
		users:       users,
		admin:       admin,
		audit:       audit,
		wallets:     wallets,
		payments:    payments,
		tournaments: tournaments,
		reconciler:  reconciler,
		hub:         hub,
		upgrader:    websocket.NewUpgrader(cfg.AllowedOrigins),
		metrics:     m,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(corsOptions(h.cfg.AllowedOrigins)))

	requireAuth := middleware.Auth(h.cfg.JWTSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(requireAuth).Get("/me", h.Me)
	})
	router.Route("/wallet", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", h.GetWallet)
		r.Get("/transactions", h.ListTransactions)
		r.Get("/self-check", h.SelfCheck)
		r.Get("/withdrawals", h.ListWithdrawals)
		r.Post("/withdrawals", h.RequestWithdrawal)
	})
	router.Route("/credits", func(r chi.Router) {
		r.Get("/packages", h.ListPackages)
		r.With(requireAuth).Get("/orders", h.ListOrders)
		r.With(requireAuth).Post("/orders", h.CreateOrder)
		r.With(requireAuth).Get("/orders/{id}", h.GetOrder)
	})
	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.ListTournaments)
		r.Get("/{id}", h.GetTournament)
		r.Get("/{id}/participants", h.ListParticipants)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", h.CreateTournament)
			r.Post("/{id}/join", h.JoinTournament)
			r.Post("/{id}/start", h.StartTournament)
			r.Post("/{id}/end", h.EndTournament)
			r.Post("/{id}/cancel", h.CancelTournament)
		})
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireAdmin(h.admin))
		r.Get("/reconcile", h.Reconcile)
		r.Get("/audit", h.ListAuditLogs)
		r.Get("/users/{identifier}", h.AdminGetUser)
		r.Post("/promote", h.PromoteAdmin)
	})

	// Cashfree retries on any non-2xx, so method checks happen in the handler.
	router.HandleFunc("/webhooks/cashfree", h.CashfreeWebhook)
	router.With(middleware.QueryAuth(h.cfg.JWTSecret)).Get("/ws/wallet", h.WSWallet)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())
	return router
}

// corsOptions only allows credentials for an explicit origin list; with a
// wildcard go-chi/cors would reflect any caller's origin.
func corsOptions(rawOrigins string) cors.Options {
	origins := splitOrigins(rawOrigins)
	wildcard := false
	for _, origin := range origins {
		if origin == "*" {
			wildcard = true
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}

func splitOrigins(raw string) []string {
	origins := []string{}
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
