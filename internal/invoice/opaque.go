package invoice

import (
	"bytes"
	"encoding/json"
	"strings"
)

// OpaqueKind tells which shape an Opaque value carries.
type OpaqueKind int

const (
	OpaqueAbsent OpaqueKind = iota
	OpaqueText
	OpaqueStructured
)

// Opaque holds a loosely typed ground-truth column (dates and XML blobs) whose
// shape differs between rows: it is either absent, a plain string, or a
// structured JSON value. It is passed through untouched.
type Opaque struct {
	kind OpaqueKind
	text string
	raw  json.RawMessage
}

// NewOpaqueText wraps a plain string value.
func NewOpaqueText(s string) Opaque {
	return Opaque{kind: OpaqueText, text: s}
}

// NewOpaqueStructured wraps a JSON object or array.
func NewOpaqueStructured(raw json.RawMessage) Opaque {
	return Opaque{kind: OpaqueStructured, raw: append(json.RawMessage(nil), raw...)}
}

// ParseOpaque classifies a stored column value. Text holding a JSON object or
// array is treated as structured, everything else as a plain string.
func ParseOpaque(s string) Opaque {
	trimmed := strings.TrimSpace(s)
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed)) {
		return NewOpaqueStructured(json.RawMessage(trimmed))
	}
	return NewOpaqueText(s)
}

func (o Opaque) Kind() OpaqueKind { return o.kind }

func (o Opaque) IsAbsent() bool { return o.kind == OpaqueAbsent }

// String returns the text value, or the raw JSON for structured values.
func (o Opaque) String() string {
	switch o.kind {
	case OpaqueText:
		return o.text
	case OpaqueStructured:
		return string(o.raw)
	default:
		return ""
	}
}

// Equal reports whether both values have the same kind and content.
func (o Opaque) Equal(other Opaque) bool {
	if o.kind != other.kind {
		return false
	}
	return o.text == other.text && bytes.Equal(o.raw, other.raw)
}

func (o Opaque) MarshalJSON() ([]byte, error) {
	switch o.kind {
	case OpaqueText:
		return json.Marshal(o.text)
	case OpaqueStructured:
		return o.raw, nil
	default:
		return []byte("null"), nil
	}
}

func (o *Opaque) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*o = Opaque{}
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*o = NewOpaqueText(s)
	default:
		*o = NewOpaqueStructured(json.RawMessage(trimmed))
	}
	return nil
}
