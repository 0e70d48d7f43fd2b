package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/screenlake/screenlake/pkg/agent"
	"github.com/screenlake/screenlake/pkg/api/config"
	"github.com/screenlake/screenlake/pkg/api/handlers"
	"github.com/screenlake/screenlake/pkg/api/metrics"
	"github.com/screenlake/screenlake/pkg/session"
	"github.com/screenlake/screenlake/pkg/warehouse"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.BoolP("verbose", "v", false, "enable verbose (debug) logging")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *verboseFlag {
		cfg.Verbose = true
	}

	log := newLogger(cfg.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	wh, err := warehouse.NewClient(warehouse.Config{
		Logger:   log,
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUsername,
		Password: cfg.ClickHousePassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create warehouse client: %w", err)
	}
	if err := wh.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach warehouse at %s: %w", cfg.ClickHouseAddr, err)
	}
	log.Info("warehouse connection verified", "addr", cfg.ClickHouseAddr, "database", cfg.ClickHouseDatabase)

	store, closeStore, err := newSessionStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	limits := warehouse.Limits{
		MaxBytesRead: cfg.MaxBytesRead,
		Timeout:      cfg.QueryTimeout,
	}

	llm := agent.NewAnthropicLLMClient(cfg.AnthropicModel, cfg.MaxTokens, log)
	schemaFetcher := warehouse.NewSchemaFetcher(wh, cfg.SchemaCacheTTL)

	ag, err := agent.New(log, llm, wh, schemaFetcher, store, limits, agent.LoopConfig{
		InnerAttempts:   cfg.InnerAttempts,
		OuterAttempts:   cfg.OuterAttempts,
		AcceptThreshold: cfg.AcceptThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	h := &handlers.Handlers{
		Log:      log,
		Agent:    ag,
		Executor: wh,
		Store:    store,
		Limits:   limits,
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/api/ask", h.Ask)
	r.Post("/api/query", h.Query)
	r.Get("/api/conversation/{sessionID}", h.Conversation)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newSessionStore picks Postgres when DATABASE_URL is set, the in-memory
// store otherwise.
func newSessionStore(ctx context.Context, log *slog.Logger, cfg *config.Config) (session.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory session store")
		return session.NewMemoryStore(), func() {}, nil
	}

	pg, err := session.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres session store: %w", err)
	}
	log.Info("using postgres session store")
	return pg, pg.Close, nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))
}
