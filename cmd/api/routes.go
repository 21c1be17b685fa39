package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rentledger/backend/internal/auth"
	"github.com/rentledger/backend/internal/config"
	"github.com/rentledger/backend/internal/handlers"
	"github.com/rentledger/backend/internal/ledger"
	"github.com/rentledger/backend/internal/middleware"
	"github.com/rentledger/backend/internal/repository"
	"github.com/rentledger/backend/internal/router"
	"github.com/rentledger/backend/internal/services"
)

// buildServer wires repositories, services and handlers into the root
// handler. Middleware chain: CORS -> Metrics -> mux -> Auth (API routes) -> handler.
func buildServer(cfg *config.Config, pool *pgxpool.Pool, insertNotification services.InsertNotificationTxFunc, reportCache services.ReportCache, logger *slog.Logger) (http.Handler, error) {
	defaults, err := cfg.LedgerDefaults()
	if err != nil {
		return nil, err
	}
	details, err := services.NewDetailsValidator()
	if err != nil {
		return nil, err
	}

	balances := repository.NewBalanceRepo(pool)
	fees := repository.NewFeeRepo(pool)
	txlog := repository.NewTransactionRepo(pool)
	cashoutRepo := repository.NewCashoutRepo(pool)
	ownerPayments := repository.NewOwnerPaymentRepo(pool)
	sources := repository.NewSourceRepo(pool)

	posting := ledger.NewService(pool, sources, balances, fees, txlog, ledger.NewFeeEngine(defaults.PlatformFeePercentage), logger)
	cashouts := services.NewCashoutService(pool, cashoutRepo, balances, sources, txlog, details, services.CashoutSettings{
		FeePercentage: &defaults.CashoutFeePercentage,
		MinAmount:     &defaults.MinCashoutAmount,
	}, insertNotification, logger)
	payouts := services.NewPayoutService(pool, balances, ownerPayments, txlog, logger)
	reports := services.NewReportService(sources, txlog, ownerPayments, cashoutRepo, balances, reportCache, logger)

	tokens := auth.NewService(cfg.JWT.Secret, cfg.JWT.Issuer)
	api := router.New(router.Handlers{
		Payments: &handlers.PaymentHandler{Ledger: posting, Logger: logger},
		Cashouts: &handlers.CashoutHandler{Cashouts: cashouts, Logger: logger},
		Owners:   &handlers.OwnerHandler{Payouts: payouts, Logger: logger},
		Reports:  &handlers.ReportHandler{Reports: reports, Logger: logger},
	}, middleware.Auth(tokens))

	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(middleware.Metrics(mux)), nil
}
