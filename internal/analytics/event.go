package analytics

import "time"

const (
	TopicShareCreated  = "share.created"
	TopicShareAccessed = "share.accessed"
)

// ShareCreatedEvent represents an event emitted when a document is shared.
type ShareCreatedEvent struct {
	ID         string    `json:"id"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	ClientIP   string    `json:"clientIp"`
	UserAgent  string    `json:"userAgent"`
	RequestID  string    `json:"requestId,omitempty"`
}

// ShareAccessedEvent represents an event emitted when a shared document is read.
type ShareAccessedEvent struct {
	ID         string    `json:"id"`
	AccessedAt time.Time `json:"accessedAt"`
	ClientIP   string    `json:"clientIp"`
	UserAgent  string    `json:"userAgent"`
	Referrer   string    `json:"referrer,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
}
