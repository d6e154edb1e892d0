package kick

import "fmt"

// ErrorKind classifies client errors.
type ErrorKind int

const (
	// ErrKindConnection covers channel resolution and transport-open
	// failures, reported from Connect.
	ErrKindConnection ErrorKind = iota

	// ErrKindWebsocket covers transport errors after open and per-frame
	// decode failures.
	ErrKindWebsocket

	// ErrKindValidation covers malformed configuration.
	ErrKindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindConnection:
		return "connection"
	case ErrKindWebsocket:
		return "websocket"
	case ErrKindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ClientError is the structured error surfaced through Connect results, the
// OnError callback, and the "error" event. It carries the failure kind plus
// the channel and client state at the time of the error.
type ClientError struct {
	Kind    ErrorKind
	Message string
	Cause   error
	Channel string
	State   ConnectionState
}

func (e *ClientError) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	if e.Channel != "" {
		msg += fmt.Sprintf(" (channel %s, state %s)", e.Channel, e.State)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error { return e.Cause }
