package kick

// ConnectionState is the lifecycle state of a client. Exactly one state is
// active at a time; every transition is observable through the
// OnStateChange callback.
type ConnectionState int

const (
	// StateDisconnected is the initial state, and the terminal state after
	// an explicit Disconnect or after reconnection gives up.
	StateDisconnected ConnectionState = iota

	// StateConnecting means name resolution or the transport handshake is
	// in flight.
	StateConnecting

	// StateConnected means the transport is open and subscribed.
	StateConnected

	// StateReconnecting means a backoff timer is pending before the next
	// automatic connection attempt.
	StateReconnecting

	// StateError means the last transition was caused by a transport or
	// resolution failure.
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
