package feed

import (
	"context"
)

// ConnState is the connection lifecycle stage of a Client.
type ConnState string

const (
	StateDisconnected ConnState = "DISCONNECTED"
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
)

// State is what a Client exposes to observers.
// Snapshot is nil until the first valid payload arrives.
type State struct {
	Snapshot  *Snapshot `json:"snapshot"`
	Connected bool      `json:"connected"`
	Conn      ConnState `json:"state"`
}

// Dialer opens a connection to a feed origin.
type Dialer interface {
	// Dial blocks until the connection is open or fails.
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one open feed connection. The client only ever reads from it.
type Conn interface {
	// Read blocks until the next payload arrives. Any error ends the connection.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}
