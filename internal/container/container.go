package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// Storage backend names accepted by the options.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options is the service configuration, filled from flags and SERVICE_* environment variables.
type Options struct {
	Port            int           `default:"8888"                                                  help:"Port to listen on"                                           short:"p"`
	BaseURL         string        `default:""                                                      help:"Public base URL for share links (default http://localhost:<port>)"`
	Storage         string        `default:"memory"                                                help:"Share storage backend: memory, redis or postgres"            short:"s"`
	RateLimitStore  string        `default:"memory"                                                help:"Rate limit state backend: memory, redis or postgres"`
	RateLimitMax    int64         `default:"10"                                                    help:"Uploads allowed per client per window"`
	RateLimitWindow time.Duration `default:"60s"                                                   help:"Rate limit window"`
	RedisAddr       string        `default:"localhost:6379"                                        help:"Redis server address"                                        short:"r"`
	DatabaseURL     string        `default:"postgres://localhost:5432/mdshare?sslmode=disable"     help:"PostgreSQL connection string"`
	AutoMigrate     bool          `default:"true"                                                  help:"Apply database migrations on startup"`
	CacheTTL        time.Duration `default:"1h"                                                    help:"Redis read cache TTL in front of postgres (0 disables)"`
	StorageTimeout  time.Duration `default:"10s"                                                   help:"Deadline for each storage call"`
	MaxBodyBytes    int64         `default:"16777216"                                              help:"Hard cap on upload bytes read from the wire"`
	TrustedIPHeader string        `default:"CF-Connecting-IP"                                      help:"Header carrying the client address set by the edge proxy"`
	ReadRPS         int           `default:"0"                                                     help:"Per-client reads per second on GET /share/{id} (0 disables)"`
	ReadBurst       int           `default:"20"                                                    help:"Burst size for the read throttle"`
	Analytics       bool          `default:"false"                                                 help:"Publish share events to Redis streams"`
	EventCodec      string        `default:"json"                                                  help:"Event encoding: json or cbor"`
	EventAttempts   int           `default:"5"                                                     help:"Deliveries of a failing event before the consumer drops it"`
	AnalyticsStore  string        `default:"redis"                                                 help:"Consumer event sink: redis or log"`
	Metrics         bool          `default:"true"                                                  help:"Expose Prometheus metrics on /metrics"`
	LogFormat       string        `default:"console"                                               help:"Log format: console or json"`
}

// ShareBaseURL returns the configured base URL or the local default.
func (o *Options) ShareBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

func (o *Options) usesRedis() bool {
	return o.Storage == BackendRedis || o.RateLimitStore == BackendRedis || o.Analytics ||
		(o.Storage == BackendPostgres && o.CacheTTL > 0)
}

func (o *Options) usesPostgres() bool {
	return o.Storage == BackendPostgres || o.RateLimitStore == BackendPostgres
}

// LoggerPackage provides the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		options := do.MustInvoke[*Options](i)

		if options.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisClient owns the shared Redis connection.
type RedisClient struct {
	*redis.Client
}

// Shutdown closes the connection.
func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// RedisPackage provides the Redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		options := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{
			Addr: options.RedisAddr,
		})}, nil
	})
}

// PostgresPool owns the shared PostgreSQL pool.
type PostgresPool struct {
	*pgxpool.Pool
}

// Shutdown closes the pool.
func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

// PostgresPackage provides the PostgreSQL pool.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*PostgresPool, error) {
		options := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), options.StorageTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, options.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		return &PostgresPool{Pool: pool}, nil
	})
}
