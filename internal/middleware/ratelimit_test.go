package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/zamdevio/mdviewer-sub000/internal/handlers"
	"github.com/zamdevio/mdviewer-sub000/internal/middleware"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	ctx        context.Context
	headers    map[string]string
	respHeader http.Header
	written    []byte
	statusCode int
	operation  *huma.Operation
}

func newMockHumaContext(client string, op *huma.Operation) *mockHumaContext {
	return &mockHumaContext{
		ctx:        handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{ClientID: client}),
		headers:    make(map[string]string),
		respHeader: http.Header{},
		operation:  op,
	}
}

func (m *mockHumaContext) Operation() *huma.Operation                 { return m.operation }
func (m *mockHumaContext) Context() context.Context                   { return m.ctx }
func (m *mockHumaContext) TLS() *tls.ConnectionState                  { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion                 { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                             { return http.MethodGet }
func (m *mockHumaContext) Host() string                               { return "" }
func (m *mockHumaContext) RemoteAddr() string                         { return "" }
func (m *mockHumaContext) URL() url.URL                               { return url.URL{} }
func (m *mockHumaContext) Param(_ string) string                      { return "" }
func (m *mockHumaContext) Query(_ string) string                      { return "" }
func (m *mockHumaContext) Header(name string) string                  { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string))      {}
func (m *mockHumaContext) BodyReader() io.Reader                      { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) { return nil, errMultipartNotSupported }
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error          { return nil }
func (m *mockHumaContext) SetStatus(code int)                         { m.statusCode = code }
func (m *mockHumaContext) Status() int                                { return m.statusCode }
func (m *mockHumaContext) AppendHeader(name, value string)            { m.respHeader.Add(name, value) }
func (m *mockHumaContext) SetHeader(name, value string)               { m.respHeader.Set(name, value) }
func (m *mockHumaContext) BodyWriter() io.Writer                      { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (n int, err error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

func throttledOp() *huma.Operation {
	return &huma.Operation{
		Path: "/share/{id}",
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Throttle: true},
		},
	}
}

func TestReadThrottle(t *testing.T) {
	t.Run("allows requests within the burst", func(t *testing.T) {
		mw := middleware.ReadThrottle(newTestAPI(), ratelimit.NewBucketStore(1, 2), zap.NewNop())

		for range 2 {
			nextCalled := false

			mw(newMockHumaContext("1.2.3.4", throttledOp()), func(_ huma.Context) { nextCalled = true })

			assert.True(t, nextCalled, "next should be called within burst")
		}
	})

	t.Run("returns 429 with retry after once the bucket is empty", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		mw := middleware.ReadThrottle(newTestAPI(), ratelimit.NewBucketStore(0.5, 1), zap.New(core))

		mw(newMockHumaContext("1.2.3.4", throttledOp()), func(_ huma.Context) {})

		ctx := newMockHumaContext("1.2.3.4", throttledOp())
		nextCalled := false

		mw(ctx, func(_ huma.Context) { nextCalled = true })

		assert.False(t, nextCalled)
		assert.Equal(t, http.StatusTooManyRequests, ctx.statusCode)
		assert.Equal(t, "2", ctx.respHeader.Get("Retry-After"))
		assert.Contains(t, string(ctx.written), "Too many requests")

		entries := logs.FilterMessage("read throttled").All()
		if assert.Len(t, entries, 1) {
			assert.Equal(t, "/share/{id}", entries[0].ContextMap()["path"])
		}
	})

	t.Run("clients have separate buckets", func(t *testing.T) {
		mw := middleware.ReadThrottle(newTestAPI(), ratelimit.NewBucketStore(1, 1), zap.NewNop())

		mw(newMockHumaContext("1.2.3.4", throttledOp()), func(_ huma.Context) {})

		nextCalled := false
		mw(newMockHumaContext("5.6.7.8", throttledOp()), func(_ huma.Context) { nextCalled = true })

		assert.True(t, nextCalled)
	})

	t.Run("skips operations without throttle metadata", func(t *testing.T) {
		mw := middleware.ReadThrottle(newTestAPI(), ratelimit.NewBucketStore(1, 1), zap.NewNop())

		for range 5 {
			nextCalled := false

			mw(newMockHumaContext("1.2.3.4", &huma.Operation{Path: "/upload"}), func(_ huma.Context) { nextCalled = true })

			assert.True(t, nextCalled)
		}
	})

	t.Run("nil bucket store disables throttling", func(t *testing.T) {
		mw := middleware.ReadThrottle(newTestAPI(), nil, zap.NewNop())

		for range 5 {
			nextCalled := false

			mw(newMockHumaContext("1.2.3.4", throttledOp()), func(_ huma.Context) { nextCalled = true })

			assert.True(t, nextCalled)
		}
	})
}

func TestGetEndpointConfig(t *testing.T) {
	t.Run("nil without operation", func(t *testing.T) {
		assert.Nil(t, ratelimit.GetEndpointConfig(newMockHumaContext("", nil)))
	})

	t.Run("reads the throttle flag", func(t *testing.T) {
		cfg := ratelimit.GetEndpointConfig(newMockHumaContext("", throttledOp()))

		if assert.NotNil(t, cfg) {
			assert.True(t, cfg.Throttle)
		}
	})
}
