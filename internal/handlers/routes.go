package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
	"github.com/zamdevio/mdviewer-sub000/internal/share"
)

// DefaultMaxBodyBytes caps how much of an upload is read before the size check runs.
const DefaultMaxBodyBytes = 8 * share.MaxSize

// NewAPIConfig returns the huma config used by the service. Responses carry
// no $schema links so bodies contain exactly the documented fields.
func NewAPIConfig(title, version string) huma.Config {
	config := huma.DefaultConfig(title, version)
	config.CreateHooks = nil

	return config
}

// RegisterRoutes registers the share routes.
// maxBodyBytes bounds the upload read; it must exceed share.MaxSize so oversized
// documents reach the handler and get the documented 413 body.
func RegisterRoutes(api huma.API, shareHandler *ShareHandler, maxBodyBytes int64) {
	if maxBodyBytes <= share.MaxSize {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	// POST /upload - Share a document
	huma.Register(api, huma.Operation{
		OperationID: "upload-share",
		Method:      http.MethodPost,
		Path:        "/upload",
		Summary:     "Share a document",
		Description: "Stores the request body as text and returns its share links. " +
			"Limited to 10 uploads per client per minute and 2 MiB per document.",
		Tags:          []string{"Shares"},
		MaxBodyBytes:  maxBodyBytes,
		DefaultStatus: http.StatusOK,
		RequestBody: &huma.RequestBody{
			Description: "Raw document text",
			Required:    false,
			Content: map[string]*huma.MediaType{
				"text/plain": {Schema: &huma.Schema{Type: huma.TypeString}},
			},
		},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusRequestEntityTooLarge,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
		},
	}, shareHandler.Upload)

	// GET /share/{id} - Read a shared document
	huma.Register(api, huma.Operation{
		OperationID: "fetch-share",
		Method:      http.MethodGet,
		Path:        "/share/{id}",
		Summary:     "Read a shared document",
		Description: "Returns the raw text of a shared document.",
		Tags:        []string{"Shares"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Throttle: true},
		},
	}, shareHandler.Fetch)
}
