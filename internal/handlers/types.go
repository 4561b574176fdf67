package handlers

// UploadRequest is the request for sharing a document. The body is taken verbatim as text.
type UploadRequest struct {
	RawBody []byte `contentType:"text/plain"`
}

// RateLimitHeaders carries the caller's remaining upload budget.
type RateLimitHeaders struct {
	Limit     int64 `doc:"Uploads allowed per window"                    header:"X-RateLimit-Limit"`
	Remaining int64 `doc:"Uploads left in the current window"            header:"X-RateLimit-Remaining"`
	Reset     int64 `doc:"Unix milliseconds at which the window resets" header:"X-RateLimit-Reset"`
}

// UploadResponse is the response for a successfully shared document.
type UploadResponse struct {
	RateLimitHeaders
	Body struct {
		ID               string `doc:"The share id"                         example:"3q2-7wAAAAAAAAAAAAAAAA"                               json:"id"`
		ShareURL         string `doc:"Absolute URL serving the raw content" example:"http://localhost:8888/share/3q2-7wAAAAAAAAAAAAAAAA" json:"shareUrl"`
		FrontendShareURL string `doc:"Viewer path for the share"            example:"/share/3q2-7wAAAAAAAAAAAAAAAA"                        json:"frontendShareUrl"`
		Size             int64  `doc:"Content size in bytes"                example:"1024"                                                 json:"size"`
		UploadedAt       string `doc:"ISO-8601 upload time"                 example:"2024-01-01T00:00:00.000Z"                             json:"uploadedAt"`
	}
}

// FetchRequest is the request for reading a shared document.
type FetchRequest struct {
	ID string `doc:"The share id" example:"3q2-7wAAAAAAAAAAAAAAAA" path:"id"`
}

// FetchResponse carries the raw shared content.
type FetchResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	ContentSize  int64  `doc:"Stored content size in bytes" header:"X-Content-Size"`
	UploadedAt   string `doc:"ISO-8601 upload time"         header:"X-Uploaded-At"`
	Body         []byte
}
