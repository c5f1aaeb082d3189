// Package main is the entry point of the progress tracker API server.
//
// The server records activity, awards points, evaluates achievements and
// serves leaderboards. PostgreSQL is the system of record; Redis is optional
// and only used for the ranking cache, per-user locks and change
// notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/config"

	// Application layer
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/command"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/eventhandler"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/query"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/saga"

	// Domain layer
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/achievement"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/content"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/leaderboard"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/social"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"

	// Infrastructure layer
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/messaging"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/persistence/memory"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/persistence/postgres"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/persistence/redis"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/scheduler"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/Cosmin-Turcin/progress-tracker-sub000/internal/interface/http"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// ledgerStore is what the ledger repositories provide to both the write
// and the read side.
type ledgerStore interface {
	points.LedgerRepository
	points.StatisticsRepository
	points.WindowRepository
}

type stores struct {
	users        user.Repository
	ledger       ledgerStore
	configs      points.ConfigRepository
	achievements achievement.Repository
	contents     content.Repository
	social       social.Repository
	snapshots    leaderboard.SnapshotRepository
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddSource: cfg.App.Debug,
	})
	log.Info("starting "+cfg.App.Name,
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	health := httpserver.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	var st stores
	if cfg.UseInMemoryStore() {
		log.Warn("no DATABASE_URL configured, using the in-memory store")
		db := memory.NewDB()
		st = stores{
			users:        memory.NewUserRepository(db),
			ledger:       memory.NewLedgerRepository(db),
			configs:      memory.NewConfigRepository(db),
			achievements: memory.NewAchievementRepository(db),
			contents:     memory.NewContentRepository(db),
			social:       memory.NewSocialRepository(db),
			snapshots:    memory.NewSnapshotRepository(db),
		}
	} else {
		conn, err := connectDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database connection")
			conn.Close()
		}()
		health.AddCheck("postgres", httpserver.PingCheck(conn))

		st = stores{
			users:        postgres.NewUserRepository(conn),
			ledger:       postgres.NewLedgerRepository(conn, log),
			configs:      postgres.NewConfigRepository(conn),
			achievements: postgres.NewAchievementRepository(conn),
			contents:     postgres.NewContentRepository(conn),
			social:       postgres.NewSocialRepository(conn),
			snapshots:    postgres.NewSnapshotRepository(conn),
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		rankingCache leaderboard.Cache = memory.NewLeaderboardCache()
		locker       saga.UserLocker
		remote       messaging.ChannelPublisher
	)
	if !cfg.Redis.Disabled {
		redisCache, err := redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   redis.DefaultConfig().MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolTimeout:  redis.DefaultConfig().PoolTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, using in-process cache and locks", logger.Err(err))
		} else {
			defer redisCache.Close()
			health.AddCheck("redis", httpserver.PingCheck(redisCache))

			rankingCache = redis.NewLeaderboardCache(redisCache, cfg.Redis.LeaderboardTTL, log)
			locker = redis.NewUserLock(redisCache, 10*time.Second, log)
			if cfg.Features.IsEnabled(config.FeatureChangeNotifications) {
				remote = redisCache
			}
			log.Info("redis connection established", logger.String("addr", cfg.Redis.Addr()))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.AsyncMode = true
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()
	events := messaging.NewChangeNotifier(bus, remote, log)

	if err := eventhandler.Register(events,
		eventhandler.NewOnPointsChangedHandler(rankingCache, log),
		eventhandler.NewOnCreatorRewardFailedHandler(log),
	); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	loc := cfg.App.Location

	ledger := command.NewPointsLedger(st.ledger, nil, events, log, command.PointsLedgerConfig{
		Clock:    clock,
		Location: loc,
	})
	flow := saga.NewAchievementFlow(st.ledger, st.achievements, locker, events, clock, log)
	ledger.SetEvaluator(flow)

	rewards := saga.NewCreatorRewardFlow(ledger, st.contents, events, clock, log, saga.CreatorRewardConfig{
		ConsumerPoints:        cfg.Rewards.ConsumerPoints,
		CreatorPoints:         cfg.Rewards.CreatorPoints,
		CreatorRewardsEnabled: cfg.Features.IsEnabled(config.FeatureCreatorRewards),
		Location:              loc,
	})

	board := query.NewGetLeaderboardHandler(query.LeaderboardDeps{
		Users:        st.users,
		Statistics:   st.ledger,
		Windows:      st.ledger,
		Achievements: st.achievements,
		Friends:      st.social,
		Snapshots:    st.snapshots,
		Cache:        rankingCache,
	}, log, query.LeaderboardConfig{
		Clock:          clock,
		Location:       loc,
		UseCache:       cfg.Features.IsEnabled(config.FeatureLeaderboardCache),
		PositionChange: cfg.Features.IsEnabled(config.FeatureLeaderboardRankDelta),
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	refreshEvery := cfg.Redis.LeaderboardTTL
	if refreshEvery <= 0 {
		refreshEvery = 5 * time.Minute
	}
	sched := scheduler.New(scheduler.Config{Logger: log})
	if err := sched.Register(
		jobs.NewRefreshLeaderboardJob(board, rankingCache, 30*time.Second, log),
		scheduler.Every(refreshEvery),
	); err != nil {
		return fmt.Errorf("failed to register jobs: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() { _ = sched.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.JWTSecret = cfg.Auth.JWTSecret
	httpConfig.JWTIssuer = cfg.Auth.Issuer
	httpConfig.Version = cfg.App.Version

	server := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		RegisterUser:         command.NewRegisterUserHandler(st.users, clock),
		RecordActivity:       command.NewRecordActivityHandler(ledger, st.configs),
		AwardPoints:          command.NewAwardPointsHandler(ledger, command.AwardPointsConfig{MaxPoints: cfg.Rewards.MaxAwardPoints}),
		UpdatePointsConfig:   command.NewUpdatePointsConfigHandler(st.configs, events, log),
		MarkAchievementsSeen: command.NewMarkAchievementsSeenHandler(st.achievements),
		Friendships:          command.NewFriendshipHandler(st.users, st.social),
		ContentUsage:         rewards,
		GetLeaderboard:       board,
		GetUserRanking:       query.NewGetUserRankingHandler(board),
		ListAchievements:     query.NewListAchievementsHandler(st.achievements, st.ledger),
		PointsConfig:         st.configs,
		Logger:               log,
		HealthChecker:        health,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("server is running", logger.String("address", server.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			runErr = err
			log.Error("server stopped unexpectedly", logger.Err(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http shutdown failed", logger.Err(err))
	}

	log.Info("shutdown complete")
	return runErr
}

func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	pool := postgres.DefaultPoolConfig()
	if cfg.Database.MaxOpenConns > 0 {
		pool.MaxConns = int32(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		pool.MinConns = int32(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pool.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		pool.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}

	log.Info("connecting to database")
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if !cfg.Database.AutoMigrate {
		return conn, nil
	}

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to read migration status", logger.Err(err))
		return conn, nil
	}
	applied := 0
	for _, m := range status {
		if m.IsApplied {
			applied++
		}
	}
	log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
	return conn, nil
}
