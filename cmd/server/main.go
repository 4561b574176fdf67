package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/zamdevio/mdviewer-sub000/internal/container"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
	"github.com/zamdevio/mdviewer-sub000/internal/store"
	"go.uber.org/zap"
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.RateLimitPackage(injector)
	container.PublisherGroupPackage(injector)
	container.HTTPPackage(injector)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			_ = do.MustInvoke[huma.API](injector)

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("storage", options.Storage),
				zap.String("rateLimitStore", options.RateLimitStore),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Root().AddCommand(resetLimitCommand(), migrateCommand())

	cli.Run()
}

func resetLimitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-limit <client>",
		Short: "Clear the upload rate limit of a client identifier",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, options *container.Options) {
			injector := do.New()
			registerPackages(injector, options)

			defer func() { _ = injector.Shutdown() }()

			logger := do.MustInvoke[*zap.Logger](injector)
			limiter := do.MustInvoke[ratelimit.Limiter](injector)

			ctx, cancel := context.WithTimeout(cmd.Context(), options.StorageTimeout)
			defer cancel()

			if err := limiter.Reset(ctx, args[0]); err != nil {
				logger.Error("reset failed", zap.String("client", args[0]), zap.Error(err))

				return
			}

			logger.Info("rate limit reset", zap.String("client", args[0]))
		}),
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, options *container.Options) {
			injector := do.New()
			registerPackages(injector, options)

			defer func() { _ = injector.Shutdown() }()

			logger := do.MustInvoke[*zap.Logger](injector)
			pool := do.MustInvoke[*container.PostgresPool](injector)

			if err := store.Migrate(cmd.Context(), pool.Pool); err != nil {
				logger.Error("migration failed", zap.Error(err))

				return
			}

			logger.Info("migrations applied")
		}),
	}
}
