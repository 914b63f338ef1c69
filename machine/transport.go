package machine

import "errors"

// ErrNotConnected is returned by operations that need an open transport.
var ErrNotConnected = errors.New("not connected")

// A Transport is a non-blocking byte channel to the controller hardware.
type Transport interface {
	Connect() error
	Close() error
	Connected() bool

	// Send writes p in full. Realtime bytes arrive without a terminator.
	Send(p []byte) error

	// Recv returns any bytes waiting on the link, or nil when there are
	// none. It must never block.
	Recv() ([]byte, error)
}
