package reporter

import (
	"fmt"
	"io"
	"net"
	"sync"

	"echoping/internal/echo"
	"echoping/internal/transport"
)

// Console prints one line per request and one per reply, timeout or fatal
// error. It is safe for concurrent use.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	prog   string
	rounds int
}

var _ echo.Reporter = (*Console)(nil)

// New creates a Console writing echo lines to out and errors to errOut,
// prefixed with prog.
func New(out, errOut io.Writer, prog string) *Console {
	return &Console{out: out, errOut: errOut, prog: prog}
}

// Start announces the resolved target.
func (c *Console) Start(host string, ip net.IP) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s is reachable at %s\n\n", host, ip)
}

func (c *Console) Sent(req echo.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rounds > 0 {
		fmt.Fprintln(c.out)
	}
	c.rounds++
	fmt.Fprintf(c.out, "Echo request to %s, seq = %d\n", req.Target, req.Sequence)
}

func (c *Console) Replied(reply transport.Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "Echo reply %s, seq = %d, bytes = %d, ttl = %d, time = %.3f ms\n",
		reply.Target, reply.Sequence, reply.Bytes, reply.TTL, reply.RTT.Seconds()*1000)
}

func (c *Console) TimedOut(req echo.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "Request timeout for %s, seq = %d\n", req.Target, req.Sequence)
}

func (c *Console) Failed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.errOut, "%s : %v\n", c.prog, err)
}
