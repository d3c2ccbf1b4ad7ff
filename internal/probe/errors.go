package probe

import "errors"

// ErrNoResponse is returned when Config.RequireResponse is set and the
// receive loop finished without a single byte from the peer.
var ErrNoResponse = errors.New("no response bytes received")

// ConnectError reports that the TCP connection to the target could not be
// established (refused, unreachable, resolution failure, or a canceled
// dial). It is fatal to the run: nothing was sent and the verdict is
// failure.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return "connect " + e.Addr + ": " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports that the request payload could not be written after a
// successful connect. Fatal to the run; the connection is still released.
type SendError struct {
	Addr string
	Err  error
}

func (e *SendError) Error() string {
	return "send to " + e.Addr + ": " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }
