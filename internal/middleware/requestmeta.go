package middleware

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/zamdevio/mdviewer-sub000/internal/handlers"
)

// DefaultTrustedIPHeader is the client address header set by the edge proxy.
const DefaultTrustedIPHeader = "CF-Connecting-IP"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestMeta is a middleware that adds client identity, user-agent, referrer
// and a request id to the request context.
func RequestMeta(
	_ huma.API, trustedHeader string, newRequestID func() string,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		requestID := ctx.Header(RequestIDHeader)
		if requestID == "" && newRequestID != nil {
			requestID = newRequestID()
		}

		if requestID != "" {
			ctx.SetHeader(RequestIDHeader, requestID)
		}

		meta := handlers.RequestMeta{
			ClientID:  ClientIdentifier(ctx, trustedHeader),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
			RequestID: requestID,
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// ClientIdentifier derives the rate limit key of a request: the trusted edge
// header, then the first X-Forwarded-For entry, then handlers.UnknownClient.
// Every unidentifiable client shares the UnknownClient bucket.
func ClientIdentifier(ctx huma.Context, trustedHeader string) string {
	if trustedHeader != "" {
		if ip := strings.TrimSpace(ctx.Header(trustedHeader)); ip != "" {
			return ip
		}
	}

	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	return handlers.UnknownClient
}
