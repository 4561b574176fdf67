package handlers

import "context"

// UnknownClient is the shared rate limit bucket for requests that carry no client address.
const UnknownClient = "unknown"

type requestMetaKey struct{}

// RequestMeta holds HTTP request metadata for rate limiting and analytics.
type RequestMeta struct {
	ClientID  string
	UserAgent string
	Referrer  string
	RequestID string
}

// ClientKey returns the rate limit key for the request.
func (m RequestMeta) ClientKey() string {
	if m.ClientID == "" {
		return UnknownClient
	}

	return m.ClientID
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}
