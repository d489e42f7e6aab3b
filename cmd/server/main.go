/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the budget engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Configure logrus
  3. Open the SQLite store (or the in-memory store)
  4. Create the handler, router and HTTP server
  5. Start the recurring payment scheduler
  6. Serve until SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides SQLITE_DB_PATH)
           An empty path selects the in-memory store

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests and a running scheduler job
     (SERVER_SHUTDOWN_TIMEOUT)
  3. Close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/budget.db"

  # Run without persistence
  ./server -db=""

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  See config/config.go for every variable and its default.

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Recurring payment processing
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/warp/budget-engine/api"
	"github.com/warp/budget-engine/config"
	"github.com/warp/budget-engine/distribution"
	"github.com/warp/budget-engine/store"
	"github.com/warp/budget-engine/store/memory"
	"github.com/warp/budget-engine/store/sqlite"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Flags win over the environment
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path, empty for in-memory")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Database.Path = *dbPath

	if cfg.IsLocal() {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetLevel(cfg.LogLevel)

	st, closeStore, err := openStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer closeStore()

	engine := distribution.NewEngine()
	engine.Policy.EmergencyFundPercentage = cfg.Budget.EmergencyFundPercentage

	handler := api.NewHandler(st, engine, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:     cfg.Server.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
		RateLimitBurst:     cfg.RateLimit.Burst,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var scheduler *api.RecurringScheduler
	if cfg.Recurring.Enabled {
		scheduler = api.NewRecurringScheduler(st, cfg.Recurring.Schedule, logger)
		if err := scheduler.Start(); err != nil {
			logger.Fatalf("Failed to start recurring scheduler: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr": server.Addr,
			"env":  cfg.Env,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
		closeStore()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func openStore(path string, logger *logrus.Logger) (store.Store, func(), error) {
	if path == "" {
		logger.Warn("no database path configured, data lives in memory only")
		return memory.New(), func() {}, nil
	}

	s, err := sqlite.New(path)
	if err != nil {
		return nil, nil, err
	}
	logger.WithField("path", path).Info("sqlite store opened")

	closed := false
	return s, func() {
		if closed {
			return
		}
		closed = true
		if err := s.Close(); err != nil {
			logger.WithError(err).Error("closing database")
		}
	}, nil
}
