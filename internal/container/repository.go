package container

import (
	"context"
	"fmt"

	"github.com/samber/do"
	"github.com/zamdevio/mdviewer-sub000/internal/share"
	"github.com/zamdevio/mdviewer-sub000/internal/store"
	"go.uber.org/zap"
)

// RepositoryPackage provides the share.Repository for the configured backend.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (share.Repository, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		switch options.Storage {
		case BackendMemory, "":
			return store.NewMemoryStore(), nil
		case BackendRedis:
			client := do.MustInvoke[*RedisClient](i)

			return store.NewRedisStore(client.Client), nil
		case BackendPostgres:
			pool := do.MustInvoke[*PostgresPool](i)

			if options.AutoMigrate {
				ctx, cancel := context.WithTimeout(context.Background(), options.StorageTimeout)
				defer cancel()

				if err := store.Migrate(ctx, pool.Pool); err != nil {
					return nil, err
				}

				logger.Info("database migrations applied")
			}

			var repo share.Repository = store.NewPostgresStore(pool.Pool)

			if options.CacheTTL > 0 {
				client := do.MustInvoke[*RedisClient](i)
				repo = store.NewRedisCacheRepository(repo, client.Client, options.CacheTTL)
			}

			return repo, nil
		default:
			return nil, fmt.Errorf("unknown storage backend %q", options.Storage)
		}
	})
}
