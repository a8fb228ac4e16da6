package messaging

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Layouts tried in order; zone-less layouts are read as UTC.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// WireTime is a timestamp that tolerates the formats producers send
type WireTime struct {
	time.Time
}

// ParseWireTime parses a textual timestamp. Empty input yields the zero time.
func ParseWireTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range wireTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.IsZero() {
				return time.Time{}, nil
			}
			return t, nil
		}
	}
	return time.Time{}, &DecodingError{Token: s, Reason: "not a timestamp"}
}

// UnmarshalJSON implements json.Unmarshaler
func (t *WireTime) UnmarshalJSON(data []byte) error {
	value := bytes.TrimSpace(data)
	if bytes.Equal(value, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return &DecodingError{Token: string(value), Reason: "timestamp must be a string"}
	}
	parsed, err := ParseWireTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler
func (t WireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
