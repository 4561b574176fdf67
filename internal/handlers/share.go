package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zamdevio/mdviewer-sub000/internal/analytics"
	"github.com/zamdevio/mdviewer-sub000/internal/messaging"
	"github.com/zamdevio/mdviewer-sub000/internal/share"
	"go.uber.org/zap"
)

// CacheControl is sent with every shared document.
const CacheControl = "public, max-age=3600"

// ShareService is the domain behavior the HTTP layer needs.
type ShareService interface {
	Upload(ctx context.Context, clientKey string, content []byte) (*share.Receipt, error)
	Fetch(ctx context.Context, id string) (*share.Share, error)
}

// ShareHandler handles uploading and reading shared documents.
type ShareHandler struct {
	service         ShareService
	baseURL         string
	publishCreated  messaging.Publish[analytics.ShareCreatedEvent]
	publishAccessed messaging.Publish[analytics.ShareAccessedEvent]
	logger          *zap.Logger
	now             func() time.Time
}

// NewShareHandler creates a new share handler.
func NewShareHandler(
	service ShareService,
	baseURL string,
	publishCreated messaging.Publish[analytics.ShareCreatedEvent],
	publishAccessed messaging.Publish[analytics.ShareAccessedEvent],
	logger *zap.Logger,
) *ShareHandler {
	return &ShareHandler{
		service:         service,
		baseURL:         strings.TrimRight(baseURL, "/"),
		publishCreated:  publishCreated,
		publishAccessed: publishAccessed,
		logger:          logger,
		now:             time.Now,
	}
}

// WithClock replaces the time source used for Retry-After and access events.
func (h *ShareHandler) WithClock(now func() time.Time) *ShareHandler {
	h.now = now

	return h
}

func (h *ShareHandler) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	meta := RequestMetaFromContext(ctx)

	receipt, err := h.service.Upload(ctx, meta.ClientKey(), req.RawBody)
	if err != nil {
		return nil, h.uploadError(meta, err)
	}

	sh := receipt.Share

	event := &analytics.ShareCreatedEvent{
		ID:         string(sh.ID),
		Size:       sh.Size,
		UploadedAt: sh.UploadedAt,
		ClientIP:   meta.ClientID,
		UserAgent:  meta.UserAgent,
		RequestID:  meta.RequestID,
	}

	if err := h.publishCreated(ctx, event); err != nil {
		h.logger.Error("failed to publish analytics event",
			zap.String("id", event.ID),
			zap.Error(err),
		)
	}

	resp := &UploadResponse{}
	resp.Limit = receipt.Quota.Limit
	resp.Remaining = receipt.Quota.Remaining
	resp.Reset = receipt.Quota.ResetAt.UnixMilli()
	resp.Body.ID = string(sh.ID)
	resp.Body.ShareURL = fmt.Sprintf("%s/share/%s", h.baseURL, sh.ID)
	resp.Body.FrontendShareURL = "/share/" + string(sh.ID)
	resp.Body.Size = sh.Size
	resp.Body.UploadedAt = share.FormatTime(sh.UploadedAt)

	return resp, nil
}

func (h *ShareHandler) Fetch(ctx context.Context, req *FetchRequest) (*FetchResponse, error) {
	sh, err := h.service.Fetch(ctx, req.ID)
	if err != nil {
		if errors.Is(err, share.ErrNotFound) {
			return nil, NewAPIError(http.StatusNotFound, "Not found", messageOf(err))
		}

		h.logger.Error("failed to fetch share",
			zap.String("id", req.ID),
			zap.Error(err),
		)

		return nil, NewAPIError(http.StatusInternalServerError, "Fetch failed", messageOf(err))
	}

	meta := RequestMetaFromContext(ctx)
	event := &analytics.ShareAccessedEvent{
		ID:         string(sh.ID),
		AccessedAt: h.now().UTC(),
		ClientIP:   meta.ClientID,
		UserAgent:  meta.UserAgent,
		Referrer:   meta.Referrer,
		RequestID:  meta.RequestID,
	}

	if err := h.publishAccessed(ctx, event); err != nil {
		h.logger.Error("failed to publish access event",
			zap.String("id", event.ID),
			zap.Error(err),
		)
	}

	contentType := sh.ContentType
	if contentType == "" {
		contentType = share.ContentType
	}

	return &FetchResponse{
		ContentType:  contentType,
		CacheControl: CacheControl,
		ContentSize:  sh.Size,
		UploadedAt:   share.FormatTime(sh.UploadedAt),
		Body:         sh.Content,
	}, nil
}

func (h *ShareHandler) uploadError(meta RequestMeta, err error) error {
	var se *share.Error
	if !errors.As(err, &se) {
		h.logger.Error("upload failed", zap.String("client", meta.ClientKey()), zap.Error(err))

		return NewAPIError(http.StatusInternalServerError, "Upload failed", "Failed to upload file")
	}

	var apiErr *APIError

	switch {
	case errors.Is(se, share.ErrRateLimited):
		now := h.now()
		apiErr = NewAPIError(http.StatusTooManyRequests, "Rate limit exceeded",
			fmt.Sprintf("Too many uploads. Please try again in %d seconds.", se.Quota.RetryAfter(now)))

		h.logger.Warn("upload rate limited",
			zap.String("client", meta.ClientKey()),
			zap.Time("resetAt", se.Quota.ResetAt),
		)

		return apiErr.WithRetryAfter(*se.Quota, now)
	case errors.Is(se, share.ErrTooLarge):
		apiErr = NewAPIError(http.StatusRequestEntityTooLarge, "File too large", se.Message)
	case errors.Is(se, share.ErrEmptyContent):
		apiErr = NewAPIError(http.StatusBadRequest, "Empty content", se.Message)
	default:
		h.logger.Error("upload failed",
			zap.String("client", meta.ClientKey()),
			zap.String("request_id", meta.RequestID),
			zap.Error(err),
		)

		apiErr = NewAPIError(http.StatusInternalServerError, "Upload failed", se.Message)
	}

	if se.Quota != nil {
		apiErr.WithQuota(*se.Quota)
	}

	return apiErr
}

func messageOf(err error) string {
	var se *share.Error
	if errors.As(err, &se) {
		return se.Message
	}

	return "Internal error"
}
