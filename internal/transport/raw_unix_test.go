//go:build unix

package transport

import (
	"errors"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// socketPair returns a RawConn over one end of a datagram socketpair and the
// raw descriptor of the other end, so reads can be driven without privileges.
func socketPair(t *testing.T) (*RawConn, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		t.Fatalf("Socketpair() error = %v", err)
	}
	c, err := newRawConn(fds[0], "pair")
	if err != nil {
		unix.Close(fds[1])
		t.Fatalf("newRawConn() error = %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		unix.Close(fds[1])
	})
	return c, fds[1]
}

func TestRawConn_Recv(t *testing.T) {
	c, peer := socketPair(t)
	want := []byte{0x45, 0x00, 0x00, 0x1c}
	if _, err := unix.Write(peer, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	buf := make([]byte, DefaultRecvBufferSize)
	if err := c.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	n, err := c.Recv(buf)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if string(buf[:n]) != string(want) {
		t.Errorf("Recv() = % x, want % x", buf[:n], want)
	}
}

func TestRawConn_DeadlineIsAbsolute(t *testing.T) {
	c, _ := socketPair(t)
	const wait = 100 * time.Millisecond

	start := time.Now()
	if err := c.SetReadDeadline(start.Add(wait)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	_, err := c.Recv(make([]byte, 64))
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Recv() error = %v, want os.ErrDeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed < wait || elapsed > 10*wait {
		t.Errorf("Recv() returned after %v, want about %v", elapsed, wait)
	}
}

func TestRawConn_ExpiredDeadlineWakesBlockedRecv(t *testing.T) {
	c, _ := socketPair(t)
	if err := c.SetReadDeadline(time.Time{}); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Recv(make([]byte, 64))
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := c.SetReadDeadline(aLongTimeAgo); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			t.Errorf("Recv() error = %v, want os.ErrDeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv() without deadline was not woken by an expired deadline")
	}
}
