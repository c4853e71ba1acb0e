package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicdesk/clinic-api/internal/config"
	"github.com/clinicdesk/clinic-api/internal/database"
	"github.com/clinicdesk/clinic-api/internal/handler"
	"github.com/clinicdesk/clinic-api/internal/middleware"
	"github.com/clinicdesk/clinic-api/internal/queue"
	"github.com/clinicdesk/clinic-api/internal/repository"
	"github.com/clinicdesk/clinic-api/internal/router"
	"github.com/clinicdesk/clinic-api/internal/scheduling"
	"github.com/clinicdesk/clinic-api/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic",
		Short:        "Clinic appointment and back-office API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := database.NewMigrator(db).Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", n)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := database.NewMigrator(db).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openDB() (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DSNParts())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	bookingCfg := config.LoadBookingConfig()

	catalog, err := scheduling.NewCatalog(bookingCfg.Slots)
	if err != nil {
		return fmt.Errorf("BOOKING_SLOTS: %w", err)
	}

	// Store. The memory driver keeps appointments in process and serves
	// booking only; accounts, finance and medicine need MySQL.
	var (
		db     *sql.DB
		ledger scheduling.Ledger
	)
	switch bookingCfg.StoreDriver {
	case config.StoreMemory:
		ledger = scheduling.NewMemoryLedger(catalog)
		logger.Warn().Msg("STORE_DRIVER=memory: appointments are not persisted, auth and back-office routes are disabled")
	default:
		db, err = database.Open(cfg.DSNParts())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to database")
		ledger = repository.NewAppointmentRepo(db, catalog)
	}

	svc := scheduling.NewService(catalog, ledger, bookingCfg.Options(), logger)
	logger.Info().
		Strs("slots", catalog.Labels()).
		Int("daily_cap", svc.Policy().Cap()).
		Str("store", bookingCfg.StoreDriver).
		Msg("booking configured")

	// Broker
	if config.QueueEnabled() {
		url := config.AMQPURL()
		pub := service.NewAppointmentPublisher(url, logger)
		defer pub.Close()
		svc.WithPublisher(pub)

		consumer := queue.NewConsumer(url, config.AuditLogDir(), logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("appointment consumer stopped")
			}
		}()
	}

	// Redis is optional; without it the limiter falls back to process-local
	// buckets and the cache passes through.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e := newEcho(cfg, logger)
	register(e, cfg, logger, db, svc, rdb)

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.IsDev()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	return e
}

func register(e *echo.Echo, cfg config.Config, logger zerolog.Logger, db *sql.DB, svc *scheduling.Service, rdb *redis.Client) {
	var limit echo.MiddlewareFunc
	if rl := config.LoadRateLimitConfig(); rl.Enabled {
		limit = middleware.NewTokenBucket(rl, rdb, logger)
	}
	var cache echo.MiddlewareFunc
	if cc := config.LoadCacheConfig(); cc.Enabled && rdb != nil {
		cache = middleware.NewRedisCache(cc, rdb)
	}

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	router.RegisterRoutes(e, pinger)
	router.RegisterAppointments(e, handler.NewAppointmentHandler(svc), cfg.JWTSecret, limit, cache)
	router.RegisterRoleRoutes(e, cfg.JWTSecret)
	if db == nil {
		return
	}

	auth := handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db))
	router.RegisterAuth(e, auth, cfg.JWTSecret, limit)
	router.RegisterFinance(e, handler.NewFinanceHandler(repository.NewFinanceRepo(db)), cfg.JWTSecret)
	router.RegisterMedicine(e, handler.NewMedicineHandler(repository.NewMedicineRepo(db)), cfg.JWTSecret)
}
