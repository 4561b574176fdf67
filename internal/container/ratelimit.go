package container

import (
	"fmt"
	"time"

	"github.com/samber/do"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
	"github.com/zamdevio/mdviewer-sub000/internal/store"
)

const sweepInterval = time.Minute

// RateLimitPackage provides the upload limiter and the optional read throttle.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Store, error) {
		options := do.MustInvoke[*Options](i)

		switch options.RateLimitStore {
		case BackendMemory, "":
			s := store.NewRateLimitMemoryStore()
			s.StartJanitor(sweepInterval)

			return s, nil
		case BackendRedis:
			return store.NewRateLimitRedisStore(do.MustInvoke[*RedisClient](i).Client), nil
		case BackendPostgres:
			return store.NewRateLimitPostgresStore(do.MustInvoke[*PostgresPool](i).Pool), nil
		default:
			return nil, fmt.Errorf("unknown rate limit backend %q", options.RateLimitStore)
		}
	})

	do.Provide(injector, func(i *do.Injector) (ratelimit.Limiter, error) {
		options := do.MustInvoke[*Options](i)
		s := do.MustInvoke[ratelimit.Store](i)

		return ratelimit.NewFixedWindowLimiter(s, options.RateLimitMax, options.RateLimitWindow), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.BucketStore, error) {
		options := do.MustInvoke[*Options](i)
		if options.ReadRPS <= 0 {
			return nil, nil
		}

		buckets := ratelimit.NewBucketStore(float64(options.ReadRPS), options.ReadBurst)
		buckets.StartJanitor(2 * time.Minute)

		return buckets, nil
	})
}
