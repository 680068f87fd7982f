// Package transport owns the raw ICMP socket and runs one echo exchange at
// a time over it.
package transport

import (
	"errors"
	"net"
	"os"
	"time"
)

var (
	// ErrSocket is returned when the raw socket cannot be opened, typically
	// for lack of privilege.
	ErrSocket = errors.New("create raw socket")
	// ErrSend is returned when an echo request cannot be transmitted.
	ErrSend = errors.New("send echo request")
	// ErrReceive is returned when reading from the socket fails or returns
	// no data.
	ErrReceive = errors.New("receive echo reply")
	// ErrTimeout is returned when no matching reply arrived before the
	// receive deadline. It ends the round but not the session.
	ErrTimeout = errors.New("timed out waiting for echo reply")
	// ErrInterrupted is returned by AwaitReply after Interrupt was called.
	ErrInterrupted = errors.New("echo exchange interrupted")
)

// Conn is a raw IPv4 ICMP socket. Recv returns IP-layer frames, IP header
// included, possibly split over several calls.
type Conn interface {
	Send(b []byte, dst net.IP) error
	Recv(b []byte) (int, error)
	// SetReadDeadline bounds subsequent Recv calls. A zero t disables the
	// deadline. An expired deadline makes Recv fail with
	// os.ErrDeadlineExceeded. It may be called while another goroutine is
	// blocked in Recv, and a deadline in the past wakes that Recv.
	SetReadDeadline(t time.Time) error
	Close() error
}

// DefaultIdentifier derives an echo identifier from the process id.
func DefaultIdentifier() uint16 {
	return uint16(os.Getpid())
}
