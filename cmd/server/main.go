package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatline/internal/api"
	"github.com/lalith-99/chatline/internal/auth"
	"github.com/lalith-99/chatline/internal/chat"
	"github.com/lalith-99/chatline/internal/config"
	"github.com/lalith-99/chatline/internal/db"
	"github.com/lalith-99/chatline/internal/friends"
	"github.com/lalith-99/chatline/internal/identity"
	"github.com/lalith-99/chatline/internal/observ"
	"github.com/lalith-99/chatline/internal/realtime"
	"github.com/lalith-99/chatline/internal/repository"
	"github.com/lalith-99/chatline/internal/repository/memory"
	"github.com/lalith-99/chatline/internal/repository/mongostore"
	"github.com/lalith-99/chatline/internal/repository/postgres"
	"github.com/lalith-99/chatline/internal/sweeper"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	hub := realtime.NewHub(logger)

	// With Redis, events fan out across instances and purges go through
	// asynq. Without it both stay in this process.
	var (
		publisher chat.Publisher
		purges    chat.PurgeScheduler
		runSweeps func(*sweeper.Sweeper) error
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}

		broker := realtime.NewRedisBroker(rdb, hub, logger)
		publisher = broker
		g.Go(func() error { return broker.Run(gctx) })

		enqueuer, err := sweeper.NewEnqueuer(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer enqueuer.Close()
		purges = enqueuer

		runSweeps = func(sw *sweeper.Sweeper) error {
			worker, err := sweeper.NewWorker(cfg.RedisURL, sw, cfg.SweepInterval, logger)
			if err != nil {
				return err
			}
			g.Go(func() error { return worker.Run(gctx) })
			return nil
		}
	} else {
		publisher = realtime.NewLocalBroker(hub)
		purges = sweeper.NewNextSweep(logger)
		runSweeps = func(sw *sweeper.Sweeper) error {
			loop := sweeper.NewLoop(sw, cfg.SweepInterval, logger)
			g.Go(func() error {
				loop.Run(gctx)
				return nil
			})
			return nil
		}
	}

	chatService := chat.NewService(store, publisher, purges, logger)
	if err := runSweeps(sweeper.New(chatService, store.Conversations(), logger)); err != nil {
		return err
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := api.Deps{
		Verifier: verifier,
		Resolver: identity.NewResolver(store.Users(), logger),
		Users:    store.Users(),
		Chat:     chatService,
		Friends:  friends.NewLedger(store, chatService, logger),
		Hub:      hub,
		TokenTTL: cfg.TokenTTL,
		Health:   health,
		Logger:   logger,
	}
	if cfg.AuthProvider == config.AuthJWT {
		deps.JWTSecret = cfg.JWTSecret
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting chatline",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
			zap.String("auth", cfg.AuthProvider),
			zap.Bool("redis", cfg.RedisURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore connects the configured backend. The returned health check may
// be nil; close is always safe to call.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(context.Context) error, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if err := db.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		database, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return postgres.NewStore(database.Pool()), database.Health, database.Close, nil

	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to mongo: %w", err)
		}
		closeClient := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect failed", zap.Error(err))
			}
		}
		store := mongostore.NewStore(client, cfg.MongoDatabase)
		if err := store.EnsureIndexes(ctx); err != nil {
			closeClient()
			return nil, nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		health := func(ctx context.Context) error { return client.Ping(ctx, nil) }
		return store, health, closeClient, nil

	default:
		logger.Warn("using the in-memory store; data is lost on restart")
		return memory.NewStore(), nil, func() {}, nil
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.AuthProvider == config.AuthFirebase {
		v, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("init firebase auth: %w", err)
		}
		return v, nil
	}
	return auth.NewJWTVerifier(cfg.JWTSecret), nil
}
