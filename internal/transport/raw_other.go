//go:build !unix

package transport

import (
	"fmt"
	"net"
	"runtime"
	"time"
)

// RawConn is unavailable on this platform.
type RawConn struct{}

// ListenRaw always fails outside unix systems.
func ListenRaw() (*RawConn, error) {
	return nil, fmt.Errorf("%w: raw ICMP sockets are not supported on %s", ErrSocket, runtime.GOOS)
}

// IsPermission reports false; raw sockets never open here.
func IsPermission(err error) bool { return false }

func (c *RawConn) Send(b []byte, dst net.IP) error { return ErrSend }
func (c *RawConn) Recv(b []byte) (int, error) { return 0, ErrReceive }
func (c *RawConn) SetReadDeadline(t time.Time) error { return nil }
func (c *RawConn) Close() error { return nil }
