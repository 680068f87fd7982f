//go:build unix

package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// RawConn is an AF_INET/SOCK_RAW/IPPROTO_ICMP socket. The descriptor is
// non-blocking and registered with the runtime poller, so read deadlines are
// absolute and may be changed from another goroutine to wake a pending Recv.
type RawConn struct {
	file *os.File
	rc   syscall.RawConn
}

// ListenRaw opens the raw ICMP socket. It needs root or CAP_NET_RAW.
func ListenRaw() (*RawConn, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSocket, err)
	}
	c, err := newRawConn(fd, "icmp4")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSocket, err)
	}
	return c, nil
}

// newRawConn takes ownership of fd and hands it to the runtime poller.
func newRawConn(fd int, name string) (*RawConn, error) {
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set non-blocking: %w", err)
	}

	file := os.NewFile(uintptr(fd), name)
	rc, err := file.SyscallConn()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &RawConn{file: file, rc: rc}, nil
}

// IsPermission reports whether err came from missing raw socket privileges.
func IsPermission(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)
}

func (c *RawConn) Send(b []byte, dst net.IP) error {
	ip4 := dst.To4()
	if ip4 == nil {
		return fmt.Errorf("not an IPv4 address: %v", dst)
	}
	sa := &unix.SockaddrInet4{}
	copy(sa.Addr[:], ip4)

	var sendErr error
	err := c.rc.Write(func(fd uintptr) bool {
		for {
			sendErr = unix.Sendto(int(fd), b, 0, sa)
			if sendErr != unix.EINTR {
				break
			}
		}
		// false parks until the socket is writable again
		return sendErr != unix.EAGAIN
	})
	if err != nil {
		return err
	}
	return sendErr
}

// Recv reads one chunk. An expired deadline fails with
// os.ErrDeadlineExceeded; EINTR is retried against the same deadline.
func (c *RawConn) Recv(b []byte) (int, error) {
	return c.file.Read(b)
}

func (c *RawConn) SetReadDeadline(t time.Time) error {
	return c.file.SetReadDeadline(t)
}

func (c *RawConn) Close() error {
	return c.file.Close()
}
