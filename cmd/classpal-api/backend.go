package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/handler"
	"github.com/noah-isme/classpal-api/internal/repository"
	"github.com/noah-isme/classpal-api/internal/repository/memory"
	"github.com/noah-isme/classpal-api/internal/service"
	"github.com/noah-isme/classpal-api/pkg/cache"
	"github.com/noah-isme/classpal-api/pkg/config"
	"github.com/noah-isme/classpal-api/pkg/database"
)

// backend is the opened persistence layer plus its readiness checks.
type backend struct {
	stores  service.Stores
	checks  map[string]handler.ReadinessCheck
	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backend, error) {
	b := &backend{checks: map[string]handler.ReadinessCheck{}}
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.checks["postgres"] = db.PingContext
		b.stores = postgresStores(db)
		logr.Info("using postgres store", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Name))
	case config.StorageMemory, "":
		store := memory.New()
		if cfg.Storage.SeedDemo {
			store.SeedDemo(time.Now().UTC())
			logr.Info("seeded demo classroom", zap.String("class_id", memory.DemoClassID))
		}
		b.stores = service.Stores{
			Users:   store.Users(),
			Classes: store.Classes(),
			Duties:  store.Duties(),
			Events:  store.Events(),
			Assets:  store.Assets(),
			Funds:   store.Funds(),
		}
		logr.Info("using in-memory store")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return b, nil
}

func postgresStores(db *sqlx.DB) service.Stores {
	return service.Stores{
		Users:   repository.NewUserRepository(db),
		Classes: repository.NewClassRepository(db),
		Duties:  repository.NewDutyRepository(db),
		Events:  repository.NewEventRepository(db),
		Assets:  repository.NewAssetRepository(db),
		Funds:   repository.NewFundRepository(db),
	}
}

// openCache connects Redis when caching is enabled. A failed connection
// degrades to uncached reads instead of aborting startup.
func (b *backend) openCache(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	if !cfg.Cache.Enabled {
		return nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		return nil
	}
	repo := repository.NewCacheRepository(client, logr, "classpal")
	b.closers = append(b.closers, repo.Close)
	b.checks["redis"] = repo.Ping
	return service.NewCacheService(repo, metrics, cfg.Cache.TTL, logr, true)
}
