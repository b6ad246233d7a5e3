// Package main is the entrypoint for the dqbank API server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/dqbank/internal/api"
	"github.com/kiranshivaraju/dqbank/internal/api/handler"
	mw "github.com/kiranshivaraju/dqbank/internal/api/middleware"
	"github.com/kiranshivaraju/dqbank/internal/api/response"
	"github.com/kiranshivaraju/dqbank/internal/cache"
	"github.com/kiranshivaraju/dqbank/internal/config"
	"github.com/kiranshivaraju/dqbank/internal/generator"
	"github.com/kiranshivaraju/dqbank/internal/kb"
	"github.com/kiranshivaraju/dqbank/internal/kbfile"
	"github.com/kiranshivaraju/dqbank/internal/store"
	"github.com/kiranshivaraju/dqbank/internal/ticket"
	"github.com/kiranshivaraju/dqbank/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"kb_backend", cfg.KB.Backend,
		"generator_provider", cfg.Generator.Provider,
		"env", cfg.Server.Env,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Set up the store and bank persister per backend
	var (
		dataStore store.Store
		persister kb.Persister
	)
	switch cfg.KB.Backend {
	case "postgres":
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		pgStore := store.NewPostgresStore(pool)
		dataStore = pgStore
		persister = pgStore
	case "file":
		memStore := store.NewMemoryStore()
		if err := seedBootstrapKey(ctx, memStore); err != nil {
			return fmt.Errorf("seed bootstrap key: %w", err)
		}
		dataStore = memStore
		persister = kbfile.New(cfg.KB.FilePath)
		slog.Info("file backend selected", "path", cfg.KB.FilePath)
	}

	// 3. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. Create candidate generator
	gen, err := generator.NewProvider(cfg.Generator)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	slog.Info("candidate generator initialized", "provider", gen.Name())

	// 5. Load the knowledge bank and build the service
	bank, err := persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load knowledge bank: %w", err)
	}
	slog.Info("knowledge bank loaded", "patterns", bank.Len(), "fixes", bank.TotalFixes())

	kbService := kb.NewService(kb.ServiceOptions{
		Bank:      bank,
		Persister: persister,
		Generator: gen,
		Policy: kb.Policy{
			MinApprovals:   cfg.KB.MinApprovals,
			MinSuccessRate: cfg.KB.MinSuccessRate,
		},
		Ranker: kb.RankerOptions{
			WeightSuccess:    cfg.KB.WeightSuccess,
			WeightSimilarity: cfg.KB.WeightSimilarity,
			WeightRecency:    cfg.KB.WeightRecency,
			RecencyWindow:    time.Duration(cfg.KB.RecencyWindowDays) * 24 * time.Hour,
			MaxResults:       cfg.KB.MaxSuggestions,
		},
		Threshold: cfg.KB.MatchThreshold,
	})

	// 6. Optional remediation ticket client
	var ticketClient ticket.Client
	if cfg.Ticket.BaseURL != "" {
		ticketClient = ticket.NewHTTPClient(cfg.Ticket)
		slog.Info("ticket client enabled", "base_url", cfg.Ticket.BaseURL)
	}

	// 7. Build router with dependencies
	auth := mw.NewAuth(dataStore)
	rateLimit := mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMin)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:   healthHandler(dataStore, redisCache),
		EvaluateHandler: handler.NewEvaluateHandler(kbService, redisCache, cfg.KB.EvalCacheTTL),
		SubmitDecision: handler.NewSubmitDecisionHandler(handler.DecisionDeps{
			Service: kbService,
			Store:   dataStore,
			Cache:   redisCache,
			Tickets: ticketClient,
		}),
		ListDecisions:    handler.NewListDecisionsHandler(dataStore),
		ListPatterns:     handler.NewListPatternsHandler(kbService),
		GetPattern:       handler.NewGetPatternHandler(kbService),
		ListAutoApproved: handler.NewAutoApprovedHandler(kbService),
		CreateKeyHandler: handler.NewCreateKeyHandler(dataStore),
		ListKeysHandler:  handler.NewListKeysHandler(dataStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(dataStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// seedBootstrapKey creates an admin API key in the in-memory store and logs
// the raw key once. The file backend has no database to hold keys, so this
// is the only way in.
func seedBootstrapKey(ctx context.Context, s store.Store) error {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	rawKey := "dqb_" + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tenant, err := s.GetDefaultTenant(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.CreateAPIKey(ctx, &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Name:      "bootstrap",
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:8],
		Scopes:    []string{"read", "write", "admin"},
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	slog.Info("bootstrap API key created (file backend only, not persisted)", "key", rawKey)
	return nil
}

// healthHandler checks store and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"store": "ok",
			"cache": "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["store"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["store"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
