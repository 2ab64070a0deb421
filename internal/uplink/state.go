package uplink

// State of a Client's connect -> invoke -> disconnect cycle.
//
//	Idle -> Connecting -> Connected <-> Invoking
//	Connected -> Disconnecting -> Idle
//	Connecting -> Failed
//
// A failed invocation returns to Connected. Failed is terminal.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateInvoking
	StateDisconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateInvoking:
		return "invoking"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
