package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zamdevio/mdviewer-sub000/internal/analytics"
	"github.com/zamdevio/mdviewer-sub000/internal/handlers"
	"github.com/zamdevio/mdviewer-sub000/internal/messaging"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
	"github.com/zamdevio/mdviewer-sub000/internal/share"
	"github.com/zamdevio/mdviewer-sub000/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// noopPublish returns a publish function that always succeeds.
func noopPublish[T any]() messaging.Publish[T] {
	return func(_ context.Context, _ *T) error { return nil }
}

// errorPublish returns a publish function that always fails.
func errorPublish[T any](err error) messaging.Publish[T] {
	return func(_ context.Context, _ *T) error { return err }
}

// capturePublish records every published event.
func capturePublish[T any](events *[]*T) messaging.Publish[T] {
	return func(_ context.Context, e *T) error {
		*events = append(*events, e)

		return nil
	}
}

func newService(repo share.Repository) *share.Service {
	limiter := ratelimit.NewFixedWindowLimiter(
		store.NewRateLimitMemoryStore(),
		ratelimit.DefaultLimit,
		ratelimit.DefaultWindow,
		ratelimit.WithClock(clock),
	)

	return share.NewService(repo, limiter, share.WithClock(clock))
}

func newTestHandler(service handlers.ShareService) *handlers.ShareHandler {
	return handlers.NewShareHandler(
		service,
		"http://localhost:8888/",
		noopPublish[analytics.ShareCreatedEvent](),
		noopPublish[analytics.ShareAccessedEvent](),
		zap.NewNop(),
	).WithClock(clock)
}

func withClient(ip string) context.Context {
	return handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{
		ClientID:  ip,
		UserAgent: "test-agent",
		Referrer:  "https://example.com/",
		RequestID: "req-1",
	})
}

func upload(t *testing.T, h *handlers.ShareHandler, ctx context.Context, body string) (*handlers.UploadResponse, error) {
	t.Helper()

	return h.Upload(ctx, &handlers.UploadRequest{RawBody: []byte(body)})
}

func requireAPIError(t *testing.T, err error, status int, code string) *handlers.APIError {
	t.Helper()

	var apiErr *handlers.APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.GetStatus())
	assert.Equal(t, code, apiErr.Code)

	return apiErr
}

type failingService struct {
	err error
}

func (f failingService) Upload(context.Context, string, []byte) (*share.Receipt, error) {
	return nil, f.err
}

func (f failingService) Fetch(context.Context, string) (*share.Share, error) {
	return nil, f.err
}

func TestShareHandler_Upload(t *testing.T) {
	t.Run("returns links and quota", func(t *testing.T) {
		h := newTestHandler(newService(store.NewMemoryStore()))

		resp, err := upload(t, h, withClient("1.2.3.4"), "# Hello")

		require.NoError(t, err)
		assert.Len(t, resp.Body.ID, 22)
		assert.Equal(t, "http://localhost:8888/share/"+resp.Body.ID, resp.Body.ShareURL)
		assert.Equal(t, "/share/"+resp.Body.ID, resp.Body.FrontendShareURL)
		assert.Equal(t, int64(7), resp.Body.Size)
		assert.Equal(t, "2024-05-01T12:00:00.000Z", resp.Body.UploadedAt)
		assert.Equal(t, int64(10), resp.Limit)
		assert.Equal(t, int64(9), resp.Remaining)
		assert.Equal(t, fixedNow.Add(time.Minute).UnixMilli(), resp.Reset)
	})

	t.Run("publishes a created event", func(t *testing.T) {
		var events []*analytics.ShareCreatedEvent

		h := handlers.NewShareHandler(
			newService(store.NewMemoryStore()),
			"http://localhost:8888",
			capturePublish(&events),
			noopPublish[analytics.ShareAccessedEvent](),
			zap.NewNop(),
		)

		resp, err := upload(t, h, withClient("1.2.3.4"), "abc")
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, resp.Body.ID, events[0].ID)
		assert.Equal(t, int64(3), events[0].Size)
		assert.Equal(t, "1.2.3.4", events[0].ClientIP)
		assert.Equal(t, "test-agent", events[0].UserAgent)
		assert.Equal(t, "req-1", events[0].RequestID)
	})

	t.Run("publish failure does not fail the upload", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		h := handlers.NewShareHandler(
			newService(store.NewMemoryStore()),
			"http://localhost:8888",
			errorPublish[analytics.ShareCreatedEvent](errors.New("publish error")),
			noopPublish[analytics.ShareAccessedEvent](),
			zap.New(core),
		)

		_, err := upload(t, h, withClient("1.2.3.4"), "abc")

		require.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("failed to publish analytics event").Len())
	})

	t.Run("empty body is a bad request", func(t *testing.T) {
		h := newTestHandler(newService(store.NewMemoryStore()))

		_, err := upload(t, h, withClient("1.2.3.4"), "")

		apiErr := requireAPIError(t, err, http.StatusBadRequest, "Empty content")
		assert.Equal(t, "Cannot share an empty document", apiErr.Message)
		assert.Nil(t, apiErr.ResetAt)
	})

	t.Run("oversized body is rejected with its size", func(t *testing.T) {
		h := newTestHandler(newService(store.NewMemoryStore()))

		_, err := upload(t, h, withClient("1.2.3.4"), string(make([]byte, 3*1024*1024)))

		apiErr := requireAPIError(t, err, http.StatusRequestEntityTooLarge, "File too large")
		assert.Equal(t, "File size (3.00 MB) exceeds the maximum of 2 MB", apiErr.Message)
		assert.Equal(t, "9", apiErr.GetHeaders().Get("X-RateLimit-Remaining"))
	})

	t.Run("eleventh upload is rate limited", func(t *testing.T) {
		h := newTestHandler(newService(store.NewMemoryStore()))
		ctx := withClient("1.2.3.4")

		for range 10 {
			_, err := upload(t, h, ctx, "x")
			require.NoError(t, err)
		}

		_, err := upload(t, h, ctx, "x")

		apiErr := requireAPIError(t, err, http.StatusTooManyRequests, "Rate limit exceeded")
		assert.Equal(t, "Too many uploads. Please try again in 60 seconds.", apiErr.Message)
		require.NotNil(t, apiErr.ResetAt)
		assert.Equal(t, fixedNow.Add(time.Minute).UnixMilli(), *apiErr.ResetAt)
		assert.Equal(t, "60", apiErr.GetHeaders().Get("Retry-After"))
		assert.Equal(t, "0", apiErr.GetHeaders().Get("X-RateLimit-Remaining"))
	})

	t.Run("requests without client identity share one bucket", func(t *testing.T) {
		h := newTestHandler(newService(store.NewMemoryStore()))

		for range 10 {
			_, err := upload(t, h, context.Background(), "x")
			require.NoError(t, err)
		}

		_, err := upload(t, h, context.Background(), "x")
		requireAPIError(t, err, http.StatusTooManyRequests, "Rate limit exceeded")

		_, err = upload(t, h, withClient("5.6.7.8"), "x")
		require.NoError(t, err)
	})

	t.Run("storage failure hides details", func(t *testing.T) {
		h := newTestHandler(failingService{err: &share.Error{
			Kind:    share.ErrStorage,
			Message: "Failed to upload file",
			Err:     errors.New("dial tcp 10.0.0.1:5432: connection refused"),
		}})

		_, err := upload(t, h, withClient("1.2.3.4"), "x")

		apiErr := requireAPIError(t, err, http.StatusInternalServerError, "Upload failed")
		assert.Equal(t, "Failed to upload file", apiErr.Message)
	})

	t.Run("unclassified failure is an internal error", func(t *testing.T) {
		h := newTestHandler(failingService{err: errors.New("boom")})

		_, err := upload(t, h, withClient("1.2.3.4"), "x")

		requireAPIError(t, err, http.StatusInternalServerError, "Upload failed")
	})
}

func TestShareHandler_Fetch(t *testing.T) {
	t.Run("returns content with headers", func(t *testing.T) {
		h := newTestHandler(newService(store.NewMemoryStore()))

		created, err := upload(t, h, withClient("1.2.3.4"), "# Title\n")
		require.NoError(t, err)

		resp, err := h.Fetch(context.Background(), &handlers.FetchRequest{ID: created.Body.ID})

		require.NoError(t, err)
		assert.Equal(t, []byte("# Title\n"), resp.Body)
		assert.Equal(t, share.ContentType, resp.ContentType)
		assert.Equal(t, "public, max-age=3600", resp.CacheControl)
		assert.Equal(t, int64(8), resp.ContentSize)
		assert.Equal(t, "2024-05-01T12:00:00.000Z", resp.UploadedAt)
	})

	t.Run("publishes an accessed event", func(t *testing.T) {
		var events []*analytics.ShareAccessedEvent

		svc := newService(store.NewMemoryStore())
		h := handlers.NewShareHandler(
			svc,
			"http://localhost:8888",
			noopPublish[analytics.ShareCreatedEvent](),
			capturePublish(&events),
			zap.NewNop(),
		).WithClock(clock)

		created, err := upload(t, h, withClient("1.2.3.4"), "abc")
		require.NoError(t, err)

		_, err = h.Fetch(withClient("9.9.9.9"), &handlers.FetchRequest{ID: created.Body.ID})
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, created.Body.ID, events[0].ID)
		assert.Equal(t, fixedNow, events[0].AccessedAt)
		assert.Equal(t, "9.9.9.9", events[0].ClientIP)
		assert.Equal(t, "https://example.com/", events[0].Referrer)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		h := newTestHandler(newService(store.NewMemoryStore()))

		_, err := h.Fetch(context.Background(), &handlers.FetchRequest{ID: "AAAAAAAAAAAAAAAAAAAAAA"})

		apiErr := requireAPIError(t, err, http.StatusNotFound, "Not found")
		assert.Equal(t, "Shared document not found or has expired", apiErr.Message)
	})

	t.Run("storage failure is an internal error", func(t *testing.T) {
		h := newTestHandler(failingService{err: &share.Error{
			Kind:    share.ErrStorage,
			Message: "Failed to retrieve file",
			Err:     errors.New("timeout"),
		}})

		_, err := h.Fetch(context.Background(), &handlers.FetchRequest{ID: "AAAAAAAAAAAAAAAAAAAAAA"})

		apiErr := requireAPIError(t, err, http.StatusInternalServerError, "Fetch failed")
		assert.Equal(t, "Failed to retrieve file", apiErr.Message)
	})
}
