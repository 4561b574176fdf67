package container

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/zamdevio/mdviewer-sub000/internal/analytics"
	"github.com/zamdevio/mdviewer-sub000/internal/handlers"
	"github.com/zamdevio/mdviewer-sub000/internal/health"
	"github.com/zamdevio/mdviewer-sub000/internal/messaging"
	"github.com/zamdevio/mdviewer-sub000/internal/middleware"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
	"github.com/zamdevio/mdviewer-sub000/internal/share"
	"go.uber.org/zap"
)

const requestIDLength = 21

// HTTPPackage provides the router, the huma API and the share service, and registers all routes.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*share.Service, error) {
		options := do.MustInvoke[*Options](i)

		return share.NewService(
			do.MustInvoke[share.Repository](i),
			do.MustInvoke[ratelimit.Limiter](i),
			share.WithStorageTimeout(options.StorageTimeout),
		), nil
	})

	do.Provide(injector, func(_ *do.Injector) (*prometheus.Registry, error) {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return registry, nil
	})

	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		options := do.MustInvoke[*Options](i)
		router := chi.NewMux()

		if !options.Metrics {
			router.Use(middleware.CORS)

			return router, nil
		}

		registry := do.MustInvoke[*prometheus.Registry](i)

		metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
		if err != nil {
			return nil, err
		}

		// chi requires every middleware before the first route.
		router.Use(metrics.Handler, middleware.CORS)
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		options := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)

		requestID, err := nanoid.Standard(requestIDLength)
		if err != nil {
			return nil, fmt.Errorf("request id generator: %w", err)
		}

		huma.NewError = handlers.NewError

		api := humachi.New(router, handlers.NewAPIConfig("Markdown Share", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api, options.TrustedIPHeader, requestID),
			middleware.ReadThrottle(api, do.MustInvoke[*ratelimit.BucketStore](i), logger),
		)

		shareHandler := handlers.NewShareHandler(
			do.MustInvoke[*share.Service](i),
			options.ShareBaseURL(),
			do.MustInvoke[messaging.Publish[analytics.ShareCreatedEvent]](i),
			do.MustInvoke[messaging.Publish[analytics.ShareAccessedEvent]](i),
			logger,
		)

		handlers.RegisterRoutes(api, shareHandler, options.MaxBodyBytes)
		health.RegisterRoutes(api, health.NewHandler(healthCheckers(i, options)))

		return api, nil
	})
}

func healthCheckers(i *do.Injector, options *Options) map[string]health.Checker {
	checkers := map[string]health.Checker{}

	if options.usesRedis() {
		checkers["redis"] = health.RedisChecker(do.MustInvoke[*RedisClient](i).Client)
	}

	if options.usesPostgres() {
		checkers["postgres"] = do.MustInvoke[*PostgresPool](i).Pool
	}

	return checkers
}
