// Package identify recovers which student a scanned page belongs to, first
// from the printed machine-readable code, then by OCR of the name header.
package identify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"markscan/internal/lookup"
)

// ShortKeyPrefix tags schema-A payloads: the prefix plus an 8-character
// short key resolved through the lookup store.
const ShortKeyPrefix = "GS:"

// ErrUnknownPayload is returned for decoded symbols that match neither
// supported schema. These are usually QR codes from unrelated documents.
var ErrUnknownPayload = errors.New("identify: unrecognized code payload")

// Identity is the resolved owner of a page.
type Identity struct {
	AssignmentID string `json:"assignment_id"`
	StudentID    string `json:"student_id"`
	Format       string `json:"format,omitempty"`
	Variant      string `json:"variant,omitempty"`
}

// Payload is a parsed code payload before lookup resolution.
type Payload struct {
	// ShortKey is set for schema-A payloads and must be resolved through
	// the lookup store.
	ShortKey string

	// Inline is set for schema-B payloads, which carry the identity
	// directly.
	Inline *Identity
}

// inlinePayload is the schema-B wire format. The version discriminator is
// mandatory; sheets printed by future generators bump it rather than change
// field meaning. Payloads must stay bit-compatible with sheets already
// in circulation.
type inlinePayload struct {
	Version      int    `json:"v"`
	AssignmentID string `json:"aid"`
	StudentID    string `json:"sid"`
	Format       string `json:"fmt,omitempty"`
	Variant      string `json:"var,omitempty"`
}

// ParsePayload classifies a decoded symbol's text under the supported schemas.
func ParsePayload(text string) (Payload, error) {
	text = strings.TrimSpace(text)

	if rest, ok := strings.CutPrefix(text, ShortKeyPrefix); ok {
		if !lookup.ValidKey(rest) {
			return Payload{}, fmt.Errorf("%w: malformed short key", ErrUnknownPayload)
		}
		return Payload{ShortKey: rest}, nil
	}

	if strings.HasPrefix(text, "{") {
		var p inlinePayload
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrUnknownPayload, err)
		}
		if p.Version != 1 {
			return Payload{}, fmt.Errorf("%w: unsupported version %d", ErrUnknownPayload, p.Version)
		}
		if p.AssignmentID == "" || p.StudentID == "" {
			return Payload{}, fmt.Errorf("%w: missing identity fields", ErrUnknownPayload)
		}
		return Payload{Inline: &Identity{
			AssignmentID: p.AssignmentID,
			StudentID:    p.StudentID,
			Format:       p.Format,
			Variant:      p.Variant,
		}}, nil
	}

	return Payload{}, ErrUnknownPayload
}

// EncodeShortKey renders a schema-A payload for printing.
func EncodeShortKey(key string) string {
	return ShortKeyPrefix + key
}

// EncodeInline renders a schema-B payload for printing.
func EncodeInline(id Identity) (string, error) {
	data, err := json.Marshal(inlinePayload{
		Version:      1,
		AssignmentID: id.AssignmentID,
		StudentID:    id.StudentID,
		Format:       id.Format,
		Variant:      id.Variant,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(data), nil
}
