package main

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/zamdevio/mdviewer-sub000/internal/analytics"
	analyticsstore "github.com/zamdevio/mdviewer-sub000/internal/analytics/store"
	"github.com/zamdevio/mdviewer-sub000/internal/container"
	"github.com/zamdevio/mdviewer-sub000/internal/messaging"
	"go.uber.org/zap"
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.ConsumerGroupPackage(injector)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		hooks.OnStart(func() {
			group := do.MustInvoke[*messaging.ConsumerGroup](injector)

			if err := group.Start(ctx); err != nil {
				logger.Fatal("failed to start consumer group", zap.Error(err))
			}

			logger.Info("consuming share events",
				zap.String("group", container.ConsumerGroupName),
				zap.String("sink", options.AnalyticsStore),
			)

			<-stopped
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			cancel()

			if err := injector.Shutdown(); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}

			close(stopped)
			logger.Info("shutdown complete")
		})
	})

	cli.Root().AddCommand(statsCommand())

	cli.Run()
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <id>",
		Short: "Print the recorded views of a shared document",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, options *container.Options) {
			injector := do.New()
			registerPackages(injector, options)

			defer func() { _ = injector.Shutdown() }()

			logger := do.MustInvoke[*zap.Logger](injector)

			redisStore, ok := do.MustInvoke[analytics.Store](injector).(*analyticsstore.Redis)
			if !ok {
				logger.Error("stats require the redis analytics store")

				return
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), options.StorageTimeout)
			defer cancel()

			stats, err := redisStore.Stats(ctx, args[0])
			if err != nil {
				logger.Error("read stats failed", zap.String("id", args[0]), zap.Error(err))

				return
			}

			fmt.Fprintf(cmd.OutOrStdout(), "id=%s size=%d views=%d visitors=%d uploaded=%s last_access=%s\n",
				args[0], stats.Size, stats.Views, stats.UniqueVisitors,
				stats.UploadedAt.Format("2006-01-02T15:04:05Z"), stats.LastAccessedAt.Format("2006-01-02T15:04:05Z"))
		}),
	}
}
