// Package content models a post body as an ordered list of typed segments
// and converts it to and from its stored JSON form.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cozytiny/internal/middleware"
)

// Type identifies what a segment's value holds.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

// Valid reports whether t is one of the known segment types.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo:
		return true
	}
	return false
}

// Segment is one rendered unit of a post body. Value is literal text for
// text segments, a URL or path for images, and a URL or embed markup for
// videos.
type Segment struct {
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

// ErrMalformedContent is returned when stored or submitted content is not a
// JSON array of {type, value} objects.
var ErrMalformedContent = errors.New("malformed content")

// Parse decodes the stored text form. A blank string is an empty body.
func Parse(raw string) ([]Segment, error) {
	if strings.TrimSpace(raw) == "" {
		return []Segment{}, nil
	}

	var segments []Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	if segments == nil {
		// "null" decodes without error but is not an array.
		return nil, fmt.Errorf("%w: expected an array", ErrMalformedContent)
	}
	return segments, nil
}

// ParseLenient is Parse for read paths: a malformed stored body is logged and
// read as empty so one bad row cannot take a page down.
func ParseLenient(ctx context.Context, raw string) []Segment {
	segments, err := Parse(raw)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "stored content is malformed; rendering empty body",
			"error", err, "length", len(raw))
		return []Segment{}
	}
	return segments
}

// Serialize is the inverse of Parse. A nil slice serializes as "[]".
func Serialize(segments []Segment) (string, error) {
	if segments == nil {
		segments = []Segment{}
	}
	// Embed markup is stored as written, not as \u003c escapes.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(segments); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// FilterEmpty drops segments with no type or a value that is blank once
// trimmed. Order of the remaining segments is preserved.
func FilterEmpty(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.Type == "" || strings.TrimSpace(s.Value) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FirstImage returns the first image segment with a non-blank value.
func FirstImage(segments []Segment) (Segment, bool) {
	for _, s := range segments {
		if s.Type == TypeImage && strings.TrimSpace(s.Value) != "" {
			return s, true
		}
	}
	return Segment{}, false
}

// Validate rejects segments whose type is not text, image or video.
func Validate(segments []Segment) error {
	for i, s := range segments {
		if !s.Type.Valid() {
			return fmt.Errorf("%w: segment %d has unknown type %q", ErrMalformedContent, i, s.Type)
		}
	}
	return nil
}

// Normalize is the write path: parse, drop empty segments, and reject
// unknown types.
func Normalize(raw string) ([]Segment, error) {
	segments, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	segments = FilterEmpty(segments)
	if err := Validate(segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// ImageValues lists the value of every image segment in order.
func ImageValues(segments []Segment) []string {
	var out []string
	for _, s := range segments {
		if s.Type == TypeImage && strings.TrimSpace(s.Value) != "" {
			out = append(out, s.Value)
		}
	}
	return out
}
