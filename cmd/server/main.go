package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gavriccccc-tech/skinfolio/internal/config"
	"github.com/gavriccccc-tech/skinfolio/internal/metrics"
	"github.com/gavriccccc-tech/skinfolio/internal/prices"
	"github.com/gavriccccc-tech/skinfolio/internal/store"
	"github.com/gavriccccc-tech/skinfolio/internal/tracker"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()
	usingMemory := false

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store with snapshot persistence")
		st = store.NewMemoryStore()
		usingMemory = true
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Price service ---
	priceSvc := prices.NewService(st, cfg.FetchRPS)

	// --- WebSocket hub ---
	wsHub := tracker.NewWSHub()
	go wsHub.Run()

	// --- Tracker service ---
	svc := tracker.NewService(st, priceSvc, cfg.SnapshotPath, wsHub)

	// Restore the last snapshot into the in-memory store. The database
	// stores are their own source of truth.
	if usingMemory {
		if err := svc.Restore(context.Background()); err != nil {
			slog.Error("snapshot restore failed", "path", cfg.SnapshotPath, "err", err)
			os.Exit(1)
		}
		slog.Info("snapshot restored", "path", cfg.SnapshotPath)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"skinfolio"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time inventory updates.
		r.Get("/ws", wsHub.HandleWS)

		// Trade ledger.
		r.Get("/trades", svc.ListTrades)
		r.Post("/trades", svc.AddTrade)
		r.Delete("/trades/{tradeID}", svc.DeleteTrade)

		// Inventory.
		r.Get("/inventory", svc.GetInventory)
		r.Get("/inventory/prices", svc.GetInventoryWithPrices)
		r.Get("/statistics", svc.GetStatistics)

		// Analysis.
		r.Get("/analysis/sales", svc.GetSalesAnalysis)
		r.Get("/analysis/portfolio", svc.GetPortfolioAnalysis)

		// Orders and fills.
		r.Get("/orders", svc.ListOrders)
		r.Post("/orders", svc.CreateOrder)
		r.Get("/orders/{orderID}", svc.GetOrder)
		r.Delete("/orders/{orderID}", svc.DeleteOrder)
		r.Post("/orders/{orderID}/cancel", svc.CancelOrder)
		r.Post("/orders/{orderID}/fills", svc.AddFill)
		r.Delete("/orders/{orderID}/fills/{fillID}", svc.RemoveFill)

		// Prices.
		r.Get("/prices/quote", svc.GetQuote)
		r.Put("/prices/manual", svc.SetManualPrice)
		r.Delete("/prices/manual", svc.RemoveManualPrice)
		r.Get("/prices/history", svc.GetPriceHistory)
		r.Post("/prices/refresh", svc.RefreshPrices)

		// Snapshots.
		r.Post("/snapshot/save", svc.SaveSnapshot)
		r.Post("/snapshot/load", svc.LoadSnapshot)

		// Reports.
		r.Get("/reports/sales.xlsx", svc.ExportSalesReport)
		r.Get("/reports/portfolio.xlsx", svc.ExportPortfolioReport)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("skinfolio listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down skinfolio...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("skinfolio stopped")
}
