package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"auxpass/config"
	"auxpass/internal/handlers"
	"auxpass/internal/services"
	"auxpass/internal/services/oracle"
	"auxpass/internal/store"
	"auxpass/internal/worker"
	"auxpass/models"
	"auxpass/monitoring"
	"auxpass/security"
	"auxpass/utils"

	_ "auxpass/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		redisOpts   *redis.Options
		redisClient *redis.Client
		stateStore  store.StateStore
		stations    services.StationDirectory
	)

	switch cfg.StateStore {
	case config.StateStoreMemory:
		log.Println("Using in-memory aux state store (single instance only)")
		stateStore = store.NewMemoryStore()
		stations = &services.StaticStations{Defaults: models.StationConfig{
			MinBalance:             cfg.DefaultMinBalance,
			SessionDurationSeconds: int64(cfg.DefaultSessionDuration / time.Second),
		}}
	default:
		redisOpts = utils.RedisOptions(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)

		var err error
		redisClient, err = utils.NewRedisClient(redisOpts)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		stateStore = store.NewRedisStore(redisClient)
		stations = services.NewStationService(app, cfg.DefaultMinBalance, cfg.DefaultSessionDuration)
	}

	balances, err := oracle.New(&oracle.Config{
		BaseURL:      cfg.BalanceOracleURL,
		APIKey:       cfg.BalanceOracleAPIKey,
		TokenAddress: cfg.GateTokenAddress,
		Decimals:     int32(cfg.GateTokenDecimals),
		Timeout:      cfg.OracleTimeout,
	})
	if err != nil {
		slog.Warn("balance oracle disabled, joins will fail", "error", err)
		balances = oracle.Unconfigured{}
	}

	// Initialize services
	monitor := monitoring.NewMonitor()
	auxService := services.NewAuxPassService(stateStore, stations, balances, monitor, cfg)

	// Initialize handlers
	auxHandler := handlers.NewAuxHandler(auxService)
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	app.RootCmd.AddCommand(newSweepCommand(auxService))

	var (
		opsServer   *monitoring.OpsServer
		sweepWorker *worker.SweepWorker
	)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Aux endpoints
		e.Router.GET("/api/v1/stations/{stationId}/aux", auxHandler.GetStatus)
		e.Router.POST("/api/v1/stations/{stationId}/aux/join", auxHandler.JoinQueue).
			BindFunc(limiter.AntiBot, limiter.RateLimit)
		e.Router.POST("/api/v1/stations/{stationId}/aux/pass", auxHandler.PassAux).
			BindFunc(limiter.AntiBot, limiter.RateLimit)
		e.Router.POST("/api/v1/stations/{stationId}/aux/leave", auxHandler.LeaveQueue).
			BindFunc(limiter.AntiBot, limiter.RateLimit)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if redisClient == nil {
				return e.JSON(http.StatusOK, map[string]string{"status": "healthy", "store": "memory"})
			}
			if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy", "store": "redis"})
		})

		log.Println("Server routes registered")

		if cfg.EnableMetrics {
			opsServer = monitoring.NewOpsServer(cfg.MetricsPort, redisClient)
			opsServer.Start()
		}

		if cfg.EnableSweep {
			if redisOpts == nil {
				go runLocalSweep(ctx, auxService, cfg.SweepInterval)
			} else {
				sweepWorker = worker.NewSweepWorker(redisOpts, auxService, cfg.SweepInterval)
				if err := sweepWorker.Start(); err != nil {
					return err
				}
			}
		}

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		log.Println("Shutdown signal received, cleaning up...")
		cancel()

		if sweepWorker != nil {
			sweepWorker.Shutdown()
		}
		if opsServer != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := opsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Ops server shutdown: %v", err)
			}
		}

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// newSweepCommand runs a single sweep across every known station and exits.
func newSweepCommand(sweeper worker.Sweeper) *cobra.Command {
	return &cobra.Command{
		Use:   "aux-sweep",
		Short: "Rotate every aux session that has run past its duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			rotated, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return fmt.Errorf("aux sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rotated %d expired session(s)\n", rotated)
			return nil
		},
	}
}

// runLocalSweep drives the sweep in-process when there is no Redis for asynq.
func runLocalSweep(ctx context.Context, sweeper worker.Sweeper, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sweeper.Sweep(ctx); err != nil {
				slog.Error("local aux sweep failed", "error", err)
			}
		}
	}
}
