package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-print"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/goliatone/go-madr/api"
	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/config"
	"github.com/goliatone/go-madr/logging"
	"github.com/goliatone/go-madr/middleware/ratelimit"
	"github.com/goliatone/go-madr/migrations"
	"github.com/goliatone/go-madr/repository"
)

const startupTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("madr: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return err
	}

	if cfg.Debug {
		fmt.Println(print.MaybePrettyJSON(cfg.Redacted()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewRepositoryManager(db)
	repo.MustValidate()

	client, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	tokens, err := auth.NewTokenService(cfg, logger.With("component", "tokens"))
	if err != nil {
		return err
	}

	hasher := auth.NewPasswordHasher(cfg.GetArgon2Params())

	registry := auth.NewRedisSessionRegistry(client).
		WithFailOpen(cfg.SessionFailOpen).
		WithLogger(logger.With("component", "sessions"))

	provider := auth.NewUserProvider(repo.Credentials(), hasher).
		WithLogger(logger.With("component", "users"))

	auther := auth.NewAuthenticator(provider, tokens, registry, cfg).
		WithLogger(logger.With("component", "auth"))

	limiter := ratelimit.New(ratelimit.Config{
		PerMinute: cfg.LoginRatePerMinute,
		Burst:     cfg.LoginRateBurst,
	})
	defer limiter.Close()

	app := api.New(api.Options{
		Logger:        logger,
		Repo:          repo,
		Auther:        auther,
		Hasher:        hasher,
		CORSOrigins:   cfg.CORSOrigins,
		LoginThrottle: limiter.Handler(),
		Debug:         cfg.Debug,
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		errc <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.DBMaxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping database %s: %w", logging.RedactURL(cfg.DatabaseURL), err)
	}

	if cfg.DBAutoMigrate {
		if err := migrations.Up(pingCtx, sqldb, migrations.Postgres); err != nil {
			_ = sqldb.Close()
			return nil, err
		}
		if version, err := migrations.Version(pingCtx, sqldb, migrations.Postgres); err != nil {
			logger.Warn("schema version unknown", "error", err)
		} else {
			logger.Info("schema migrated", "version", version)
		}
	}

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.PoolSize = cfg.RedisPoolSize

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		// the registry decides at request time how to treat an outage
		if !cfg.SessionFailOpen {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}
	return client, nil
}
