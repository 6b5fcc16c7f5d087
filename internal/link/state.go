package link

// State is the lifecycle state of the connection.
type State int

const (
	// StateDisconnected indicates no connection and no dial in progress.
	StateDisconnected State = iota
	// StateConnecting indicates a dial is in progress.
	StateConnecting
	// StateConnected indicates an established connection.
	StateConnected
	// StateClosing indicates Close is shutting the link down.
	StateClosing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}
