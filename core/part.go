package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of message or artifact content.
// Concrete part types implement the unexported isPart marker enabling a
// closed set that can be matched exhaustively with a type switch.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g. a JSON object map).
type DataPart struct {
	Data     map[string]any // Structured key/value payload
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// FilePart references a file either inline (base64 bytes) or by URI.
type FilePart struct {
	Name     string // Original filename hint
	MimeType string // Optional MIME type
	Bytes    string // Base64 encoded contents (if inlined)
	URI      string // External retrieval URI (if not inlined)
	Metadata map[string]any
}

// isPart implements the Part interface for FilePart.
func (FilePart) isPart() {}

// partEnvelope is the wire shape for parts. A "type" discriminator keeps the
// closed union round-trippable through JSON.
type partEnvelope struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Name     string         `json:"name,omitempty"`
	MimeType string         `json:"mime_type,omitempty"`
	Bytes    string         `json:"bytes,omitempty"`
	URI      string         `json:"uri,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON encodes the part with a "text" type discriminator.
func (p TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(partEnvelope{Type: "text", Text: p.Text, Metadata: p.Metadata})
}

// MarshalJSON encodes the part with a "data" type discriminator.
func (p DataPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(partEnvelope{Type: "data", Data: p.Data, Metadata: p.Metadata})
}

// MarshalJSON encodes the part with a "file" type discriminator.
func (p FilePart) MarshalJSON() ([]byte, error) {
	return json.Marshal(partEnvelope{
		Type:     "file",
		Name:     p.Name,
		MimeType: p.MimeType,
		Bytes:    p.Bytes,
		URI:      p.URI,
		Metadata: p.Metadata,
	})
}

// unmarshalParts decodes a slice of raw part payloads back into the union.
func unmarshalParts(raw []json.RawMessage) ([]Part, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	parts := make([]Part, 0, len(raw))
	for _, r := range raw {
		var env partEnvelope
		if err := json.Unmarshal(r, &env); err != nil {
			return nil, err
		}
		switch env.Type {
		case "text":
			parts = append(parts, TextPart{Text: env.Text, Metadata: env.Metadata})
		case "data":
			parts = append(parts, DataPart{Data: env.Data, Metadata: env.Metadata})
		case "file":
			parts = append(parts, FilePart{
				Name:     env.Name,
				MimeType: env.MimeType,
				Bytes:    env.Bytes,
				URI:      env.URI,
				Metadata: env.Metadata,
			})
		default:
			return nil, fmt.Errorf("unknown part type %q", env.Type)
		}
	}
	return parts, nil
}
