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

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/rideshare/backend/internal/api"
	"github.com/ayush/rideshare/backend/internal/auth"
	"github.com/ayush/rideshare/backend/internal/bookings"
	"github.com/ayush/rideshare/backend/internal/config"
	"github.com/ayush/rideshare/backend/internal/logging"
	"github.com/ayush/rideshare/backend/internal/rides"
	"github.com/ayush/rideshare/backend/internal/store"
	"github.com/ayush/rideshare/backend/internal/users"
)

// repository is the document store behind all three services.
type repository interface {
	users.Store
	rides.Store
	bookings.Store
	api.Pinger
}

type backends struct {
	repo        repository
	cache       users.IdentityCache
	avatars     users.AvatarStore
	events      bookings.EventLog
	revocations api.Revocations
	closers     []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()

	var b *backends
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on exit")
		b = memoryBackends()
	} else {
		b, err = connectBackends(ctx, cfg, logger)
		if err != nil {
			logger.Error("connect backends", "error", err)
			os.Exit(1)
		}
	}
	defer b.close()

	// ── Services ─────────────────────────────────────────────
	policy := bookings.Lenient
	if cfg.SeatPolicy == config.SeatPolicyStrict {
		policy = bookings.Strict
	}
	userSvc := users.NewService(b.repo, b.cache, b.avatars, logger)
	rideSvc := rides.NewService(b.repo, userSvc, logger)
	bookingSvc := bookings.NewService(b.repo, userSvc, b.events, policy, logger)

	// ── Router ───────────────────────────────────────────────
	router := api.NewRouter(api.Deps{
		Logger:      logger,
		DB:          b.repo,
		Verifier:    auth.NewVerifier(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthAudience),
		Revocations: b.revocations,
		Users:       userSvc,
		Rides:       rideSvc,
		Bookings:    bookingSvc,
		CORSOrigins: cfg.CORSOrigins,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("backend listening", "port", cfg.Port, "storage", cfg.Storage, "seat_policy", cfg.SeatPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func connectBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	fail := func(err error) (*backends, error) {
		b.close()
		return nil, err
	}

	// ── MongoDB ──────────────────────────────────────────────
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fail(fmt.Errorf("mongo connect: %w", err))
	}
	b.closers = append(b.closers, func() { mongoClient.Disconnect(context.Background()) })
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.Ping(connectCtx); err != nil {
		return fail(fmt.Errorf("mongo ping: %w", err))
	}
	if err := mongoStore.EnsureIndexes(connectCtx); err != nil {
		return fail(fmt.Errorf("mongo indexes: %w", err))
	}
	b.repo = mongoStore
	logger.Info("mongo connected", "db", cfg.MongoDB)

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(connectCtx, cfg.PostgresDSN)
	if err != nil {
		return fail(fmt.Errorf("postgres connect: %w", err))
	}
	b.closers = append(b.closers, pgPool.Close)
	events := store.NewEventStore(pgPool)
	if err := events.Migrate(connectCtx); err != nil {
		return fail(fmt.Errorf("postgres migrate: %w", err))
	}
	b.events = events

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(connectCtx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return fail(fmt.Errorf("redis connect: %w", err))
	}
	b.closers = append(b.closers, func() { rdb.Close() })
	b.cache = store.NewIdentityCache(rdb, cfg.IdentityCacheTTL)
	b.revocations = auth.NewRevocationStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	avatars, err := store.NewMinioStore(
		connectCtx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		return fail(fmt.Errorf("minio connect: %w", err))
	}
	b.avatars = avatars

	return b, nil
}

func memoryBackends() *backends {
	return &backends{
		repo:        store.NewMemoryStore(),
		cache:       store.NewMemoryIdentityCache(),
		avatars:     store.NewMemoryObjects(),
		events:      store.NewMemoryEvents(),
		revocations: auth.NewMemoryRevocations(),
	}
}
