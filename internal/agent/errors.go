package agent

import (
	"errors"
	"fmt"
	"strings"
)

const maxBodyInError = 512

// TransportError is a network failure or a non-2xx reply. Status is 0 when no
// response was received.
type TransportError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("agent %s unreachable: %v", e.Op, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > maxBodyInError {
		body = body[:maxBodyInError] + "..."
	}
	if body == "" {
		return fmt.Sprintf("agent error %d on %s", e.Status, e.Op)
	}
	return fmt.Sprintf("agent error %d on %s: %s", e.Status, e.Op, body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a 2xx reply that could not be parsed or lacks required fields.
type ProtocolError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s returned a malformed response: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("agent %s returned a malformed response: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
