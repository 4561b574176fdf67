package store

import (
	"context"

	"github.com/zamdevio/mdviewer-sub000/internal/analytics"
	"go.uber.org/zap"
)

// Log writes each event to the logger and keeps nothing.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("analytics")}
}

func (l *Log) SaveShareCreated(_ context.Context, event *analytics.ShareCreatedEvent) error {
	l.logger.Info("share created",
		zap.String("id", event.ID),
		zap.Int64("size", event.Size),
		zap.Time("uploadedAt", event.UploadedAt),
		zap.String("clientIp", event.ClientIP),
		zap.String("requestId", event.RequestID),
	)

	return nil
}

func (l *Log) SaveShareAccessed(_ context.Context, event *analytics.ShareAccessedEvent) error {
	l.logger.Info("share accessed",
		zap.String("id", event.ID),
		zap.Time("accessedAt", event.AccessedAt),
		zap.String("clientIp", event.ClientIP),
		zap.String("userAgent", event.UserAgent),
		zap.String("referrer", event.Referrer),
	)

	return nil
}

var _ analytics.Store = (*Log)(nil)
