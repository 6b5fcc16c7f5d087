package link

import "errors"

// Failure taxonomy for the outbound link. Connect, send, and receive
// failures are handled locally and drive a transition to Disconnected;
// they are never surfaced to the tick driver.
var (
	// ErrConnectFailed wraps DNS, refused, and timeout errors during dial.
	ErrConnectFailed = errors.New("connect failed")
	// ErrAlreadyConnected is returned by Connect when a connection is
	// already established or in progress.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrNotConnected is returned by Send when the link is down. No I/O
	// is performed.
	ErrNotConnected = errors.New("not connected to server")
	// ErrSendFailed wraps a transport write failure.
	ErrSendFailed = errors.New("send failed")
	// ErrClosed is returned once Close has been called; the manager does
	// not accept new operations after that.
	ErrClosed = errors.New("link closed")
	// ErrPeerClosed marks a graceful close frame from the server. It is
	// an expected terminal condition, not a fault.
	ErrPeerClosed = errors.New("peer closed connection")
)
