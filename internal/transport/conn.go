// Package transport owns the single TCP socket between the controller and
// one television. It validates addresses before dialing, writes complete
// frames, and reads inbound envelopes; what the bytes mean is the remote
// package's business.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/tvkit/samremote/internal/protocol"
)

// ConnectError reports a socket-level failure to establish the TCP link.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect %s: %v", e.Addr, e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// WriteError reports a failed or partial write to an established socket.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write frame: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Conn is one outbound TCP connection to a television. It is exclusively
// owned by a single remote-control session; at most one write and one read
// are logically in flight at a time.
type Conn struct {
	nc net.Conn
}

// Dial opens a TCP connection to the remote-control service on ip.
// The address is validated before any syscall: a string that does not parse
// as an IPv4 or IPv6 literal fails fast with protocol.ErrInvalidAddress.
// port 0 means the well-known service port. Exactly one attempt is made;
// retry policy belongs to the caller.
func Dial(ctx context.Context, ip string, port int) (*Conn, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("%w: %q", protocol.ErrInvalidAddress, ip)
	}
	if port == 0 {
		port = protocol.Port
	}
	addr := net.JoinHostPort(ip, strconv.Itoa(port))

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return &Conn{nc: nc}, nil
}

// WriteFrame writes b to the socket in full. TCP sends are not atomic, so
// the loop continues until every byte is flushed or the socket errors;
// a short write never passes silently.
func (c *Conn) WriteFrame(b []byte) error {
	for len(b) > 0 {
		n, err := c.nc.Write(b)
		if err != nil {
			return &WriteError{Err: err}
		}
		b = b[n:]
	}
	return nil
}

// ReadPayload reads the next envelope off the socket and returns its inner
// payload. Blocks until a full frame arrives or the socket fails.
func (c *Conn) ReadPayload() ([]byte, error) {
	return protocol.ReadEnvelope(c.nc)
}

// LocalIP returns the socket's local IP literal, the address the TV shows
// on its permission prompt.
func (c *Conn) LocalIP() string {
	host, _, err := net.SplitHostPort(c.nc.LocalAddr().String())
	if err != nil {
		return ""
	}
	return host
}

// Close closes the socket. Safe to call more than once; subsequent closes
// return the underlying error from net.Conn.
func (c *Conn) Close() error {
	return c.nc.Close()
}
