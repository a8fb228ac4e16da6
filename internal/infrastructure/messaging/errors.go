package messaging

import "fmt"

// DecodingError reports a payload or token that cannot be decoded.
// Messages failing with a DecodingError are discarded, never retried.
type DecodingError struct {
	Field  string
	Token  string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *DecodingError) Error() string {
	msg := "decoding failed"
	if e.Field != "" {
		msg += " for " + e.Field
	}
	if e.Token != "" {
		msg += fmt.Sprintf(": cannot convert value '%s'", e.Token)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *DecodingError) Unwrap() error {
	return e.Err
}

// TransportError reports a broker failure while publishing or consuming
type TransportError struct {
	Op    string
	Topic string
	Err   error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("broker %s on topic %s failed: %v", e.Op, e.Topic, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}
