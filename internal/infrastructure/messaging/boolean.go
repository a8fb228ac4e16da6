package messaging

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	truthyTokens = map[string]struct{}{
		"sim": {}, "s": {}, "yes": {}, "true": {}, "1": {},
	}
	falsyTokens = map[string]struct{}{
		"não": {}, "nao": {}, "n": {}, "no": {}, "false": {}, "0": {},
	}

	folder = cases.Fold()
)

// ParseBoolToken maps a human boolean token to a bool.
// Matching ignores surrounding whitespace, letter case and Unicode composition.
func ParseBoolToken(s string) (bool, error) {
	token := norm.NFC.String(folder.String(norm.NFC.String(strings.TrimSpace(s))))
	if _, ok := truthyTokens[token]; ok {
		return true, nil
	}
	if _, ok := falsyTokens[token]; ok {
		return false, nil
	}
	return false, &DecodingError{Token: s, Reason: "not a boolean"}
}

// DecodeLenientBool decodes a raw JSON value into a bool.
// Accepted: JSON booleans, boolean tokens as strings, integral numbers.
func DecodeLenientBool(raw json.RawMessage) (bool, error) {
	value := bytes.TrimSpace(raw)
	if len(value) == 0 {
		return false, &DecodingError{Reason: "empty value"}
	}

	switch value[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return false, &DecodingError{Token: string(value), Err: err}
		}
		return b, nil
	case '"':
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return false, &DecodingError{Token: string(value), Err: err}
		}
		return ParseBoolToken(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		n, err := decimal.NewFromString(string(value))
		if err != nil {
			return false, &DecodingError{Token: string(value), Err: err}
		}
		if !n.IsInteger() {
			return false, &DecodingError{Token: string(value), Reason: "number is not integral"}
		}
		return !n.IsZero(), nil
	default:
		return false, &DecodingError{Token: string(value), Reason: "unexpected JSON kind"}
	}
}

// LenientBool is a bool that decodes from any token DecodeLenientBool accepts
type LenientBool bool

// UnmarshalJSON implements json.Unmarshaler
func (b *LenientBool) UnmarshalJSON(data []byte) error {
	v, err := DecodeLenientBool(data)
	if err != nil {
		return err
	}
	*b = LenientBool(v)
	return nil
}

// Bool returns the underlying value
func (b LenientBool) Bool() bool {
	return bool(b)
}
