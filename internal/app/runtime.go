package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/clinic-workflow/internal/config"
	"github.com/jwalitptl/clinic-workflow/internal/handler/health"
	"github.com/jwalitptl/clinic-workflow/internal/repository"
	"github.com/jwalitptl/clinic-workflow/internal/repository/memory"
	"github.com/jwalitptl/clinic-workflow/internal/repository/postgres"
	"github.com/jwalitptl/clinic-workflow/pkg/auth"
	"github.com/jwalitptl/clinic-workflow/pkg/lock"
	"github.com/jwalitptl/clinic-workflow/pkg/logger"
	"github.com/jwalitptl/clinic-workflow/pkg/messaging"
	redisBroker "github.com/jwalitptl/clinic-workflow/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-workflow/pkg/metrics"
	"github.com/jwalitptl/clinic-workflow/pkg/retry"
	"github.com/jwalitptl/clinic-workflow/pkg/security"
)

// Runtime holds the infrastructure selected by the storage driver.
// The memory driver keeps everything in-process; postgres brings Redis along
// for the slot locks and the broker.
type Runtime struct {
	Repos  repository.Repositories
	Locker lock.Locker
	Broker messaging.Broker
	Checks map[string]health.Check

	closers []func() error
}

func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		return &Runtime{
			Repos:  memory.New().Repositories,
			Locker: lock.NewLocalLocker(),
			Broker: messaging.NewMemoryBroker(),
			Checks: map[string]health.Check{},
		}, nil
	}

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Name:            cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		db.Close()
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Runtime{
		Repos: postgres.New(db).Repositories,
		Locker: lock.NewRedisLocker(client, lock.RedisConfig{
			Prefix: cfg.Redis.Prefix + "lock",
			TTL:    cfg.Redis.LockTTL,
			Wait:   cfg.Redis.LockWait,
		}),
		Broker: redisBroker.NewRedisBroker(client, redisBroker.Config{
			Prefix:           cfg.Redis.Prefix + "events:",
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		}, log),
		Checks: map[string]health.Check{
			"postgres": db.PingContext,
			"redis":    func(ctx context.Context) error { return client.Ping(ctx).Err() },
		},
		closers: []func() error{client.Close, db.Close},
	}, nil
}

func (r *Runtime) Close() error {
	var firstErr error
	if r.Broker != nil {
		firstErr = r.Broker.Close()
	}
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Deps assembles the service dependencies for this runtime.
func (r *Runtime) Deps(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (Deps, error) {
	hasher, err := security.NewBcryptHasher(security.HasherConfig{
		Cost:      cfg.Auth.BcryptCost,
		MinLength: cfg.Auth.MinPasswordLength,
	})
	if err != nil {
		return Deps{}, err
	}

	return Deps{
		Repos:        r.Repos,
		Locker:       r.Locker,
		JWT:          auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL),
		Hasher:       hasher,
		ReadPolicy:   retry.DefaultPolicy(),
		RoleCacheTTL: cfg.Auth.RoleCacheTTL,
		Location:     cfg.Location(),
		Log:          log,
		Metrics:      m,
	}, nil
}
