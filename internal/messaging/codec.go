package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MetadataContentType is the message metadata key naming the payload encoding.
const MetadataContentType = "content_type"

// Codec encodes event payloads.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes payloads as JSON. Messages without a content type are JSON.
type JSONCodec struct{}

func (JSONCodec) ContentType() string                { return "application/json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CBORCodec encodes payloads as CBOR.
type CBORCodec struct{}

func (CBORCodec) ContentType() string                { return "application/cbor" }
func (CBORCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (CBORCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// CodecByName returns the codec for a configuration value ("json" or "cbor").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown event codec %q", name)
	}
}

func codecFor(contentType string) (Codec, bool) {
	switch contentType {
	case "", JSONCodec{}.ContentType():
		return JSONCodec{}, true
	case CBORCodec{}.ContentType():
		return CBORCodec{}, true
	default:
		return nil, false
	}
}
