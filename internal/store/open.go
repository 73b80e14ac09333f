package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/config"
)

// Open returns the Repo selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (Repo, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return asRepo(OpenSQLite(ctx, cfg.DBPath))
	case "postgres":
		return asRepo(OpenPostgres(ctx, cfg.PostgresURL, PostgresOptions{
			MaxConns:      cfg.PostgresMaxConns,
			RetryAttempts: cfg.StoreRetryAttempts,
			RetryInterval: cfg.StoreRetryInterval,
		}, log))
	case "mongo":
		return asRepo(OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase, cfg.StoreRetryAttempts, cfg.StoreRetryInterval))
	case "redis":
		return asRepo(OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix, cfg.StoreRetryAttempts, cfg.StoreRetryInterval))
	case "badger":
		return asRepo(OpenBadger(cfg.BadgerDir))
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.StoreDriver)
	}
}

// asRepo keeps a failed constructor from yielding a non-nil interface
// wrapping a nil pointer.
func asRepo[R Repo](r R, err error) (Repo, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
