package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/zamdevio/mdviewer-sub000/internal/handlers"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
	"go.uber.org/zap"
)

// ReadThrottle returns a Huma middleware applying a per-client token bucket to
// operations whose metadata sets ratelimit.EndpointConfig.Throttle. A nil store
// disables it. It must run after RequestMeta.
func ReadThrottle(
	api huma.API,
	buckets *ratelimit.BucketStore,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if buckets == nil {
			next(ctx)

			return
		}

		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg == nil || !cfg.Throttle {
			next(ctx)

			return
		}

		key := handlers.RequestMetaFromContext(ctx.Context()).ClientKey()

		ok, delay := buckets.Reserve(key)
		if ok {
			next(ctx)

			return
		}

		retry := int64(math.Ceil(delay.Seconds()))
		if retry < 1 {
			retry = 1
		}

		logger.Warn("read throttled",
			zap.String("path", getOperationPath(ctx)),
			zap.String("client", key),
			zap.Duration("delay", delay),
		)

		ctx.SetHeader("Retry-After", strconv.FormatInt(retry, 10))
		_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "Too many requests. Please slow down.")
	}
}

// getOperationPath extracts the path from the operation, if available.
func getOperationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}
