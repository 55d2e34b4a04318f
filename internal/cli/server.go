package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"contest-engine/internal/app"
	"contest-engine/internal/config"
	"contest-engine/internal/infra/memory"
	pgstore "contest-engine/internal/infra/postgres"
	redisboard "contest-engine/internal/infra/redis"
	transport "contest-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	defer logger.Init("contest-engine", true, false, os.Stderr).Close()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	contestTTL := config.TTLDuration(cfg.Contest.CacheTTL, time.Minute)
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 0)

	var contests app.ContestStore
	var ledger app.Ledger
	var final app.FinalStore
	if pool != nil {
		store := pgstore.NewStore(pool)
		contests = memory.NewContestCache(store, contestTTL)
		ledger = store
		final = store
	} else {
		store := memory.NewContestStore()
		contests = memory.NewContestCache(store, contestTTL)
		ledger = memory.NewLedger()
	}

	var live app.LeaderboardStore
	if redisClient != nil {
		live = redisboard.NewLeaderboard(redisClient, redisTTL)
	} else {
		live = memory.NewLeaderboard()
	}
	var boards app.LeaderboardStore = live
	if final != nil {
		boards = &app.TieredLeaderboard{Live: live, Final: final}
	}

	service := app.NewContestService(contests, ledger, boards,
		app.WithMaxPageSize(cfg.Leaderboard.MaxPageSize))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sweepInterval := config.TTLDuration(cfg.Lifecycle.SweepInterval, 30*time.Second)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return service.RunSweeper(groupCtx, sweepInterval)
	})
	group.Go(func() error {
		logger.Infof("starting contest engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Infof("shutting down server...")
	case <-groupCtx.Done():
		logger.Infof("context canceled, shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	cancel()
	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
