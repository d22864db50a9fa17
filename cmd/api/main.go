package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"splitledger/internal/balance"
	"splitledger/internal/config"
	"splitledger/internal/database"
	"splitledger/internal/expense"
	"splitledger/internal/group"
	"splitledger/internal/settlement"
	"splitledger/internal/user"
	"splitledger/pkg/logging"
	"splitledger/pkg/metrics"
	mw "splitledger/pkg/middleware"
	"splitledger/pkg/response"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	logging.Setup()
	metrics.Register()

	// Load configuration
	cfg := config.Load()

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Connected to database")

	// Ledger collaborators
	userRepo := user.NewRepository(db)
	groupRepo := group.NewRepository(db)
	expenseRepo := expense.NewRepository(db)
	settlementRepo := settlement.NewRepository(db)

	// Balance engine
	balanceService := balance.NewService(expenseRepo, settlementRepo, userRepo, cfg.ReadTimeout)
	balanceHandler := balance.NewHandler(balanceService)

	// Settlement allocator
	settlementService := settlement.NewService(groupRepo, expenseRepo, settlementRepo, cfg.ReadTimeout)
	settlementHandler := settlement.NewHandler(settlementService)

	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.CallerIdentity)

		r.Mount("/balances", balanceHandler.Routes())
		r.Mount("/settlements", settlementHandler.Routes())
	})

	addr := ":" + cfg.Port
	slog.Info("Server starting", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
