package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"echoping/internal/packet"
)

// DefaultRecvBufferSize is the size of a single socket read. It holds the
// largest IPv4 datagram so the kernel never truncates a raw read.
const DefaultRecvBufferSize = 1 << 16

// aLongTimeAgo is a read deadline that has always expired.
var aLongTimeAgo = time.Unix(1, 0)

// State is the position of a Session in the echo exchange.
type State int

const (
	Idle State = iota
	Sending
	AwaitingReply
	Reassembling
	Matched
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case AwaitingReply:
		return "awaiting_reply"
	case Reassembling:
		return "reassembling"
	case Matched:
		return "matched"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a Session.
type Options struct {
	// Identifier tags every request and is the only thing that tells this
	// session's replies apart from other ICMP traffic on the socket.
	Identifier uint16
	Payload    []byte
	// Timeout bounds AwaitReply. Zero waits forever.
	Timeout time.Duration
	// VerifyChecksum drops replies whose ICMP checksum does not verify.
	VerifyChecksum bool
	// RecvBufferSize is the size of one read. Defaults to
	// DefaultRecvBufferSize.
	RecvBufferSize int
	Logger         *slog.Logger
}

// Reply describes a matched echo reply.
type Reply struct {
	Target     net.IP
	Identifier uint16
	Sequence   uint16
	TTL        uint8
	// Bytes is the ICMP message length, header included.
	Bytes int
	RTT   time.Duration
}

// Session runs echo exchanges against one target over a Conn it owns.
// It is not safe for concurrent use, except for Interrupt.
type Session struct {
	conn    Conn
	target  net.IP
	target4 [4]byte
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	state  State
	seq    uint16
	sentAt time.Time

	chunk   []byte
	pending []byte

	interrupted atomic.Bool
}

// NewSession takes ownership of conn.
func NewSession(conn Conn, target net.IP, opts Options) (*Session, error) {
	ip4 := target.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("target %v is not an IPv4 address", target)
	}
	if opts.RecvBufferSize <= 0 {
		opts.RecvBufferSize = DefaultRecvBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		conn:   conn,
		target: ip4,
		opts:   opts,
		logger: logger.With(slog.String("component", "transport"), slog.String("target", ip4.String())),
		now:    time.Now,
		chunk:  make([]byte, opts.RecvBufferSize),
	}
	copy(s.target4[:], ip4)
	return s, nil
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Sequence returns the sequence number of the last request.
func (s *Session) Sequence() uint16 { return s.seq }

// Identifier returns the echo identifier of this session.
func (s *Session) Identifier() uint16 { return s.opts.Identifier }

// Target returns the IPv4 address being pinged.
func (s *Session) Target() net.IP { return s.target }

// Send increments the sequence number and transmits a fresh echo request.
// It returns the sequence number used.
func (s *Session) Send() (uint16, error) {
	if s.state == Failed {
		return s.seq, errors.New("session has failed")
	}
	s.state = Sending
	s.seq++

	req := packet.EncodeEchoRequest(s.opts.Identifier, s.seq, s.opts.Payload)
	if err := s.conn.Send(req, s.target); err != nil {
		s.state = Failed
		return s.seq, fmt.Errorf("%w: %w", ErrSend, err)
	}
	s.sentAt = s.now()
	s.pending = s.pending[:0]
	s.state = AwaitingReply
	s.logger.Debug("Echo request sent.", "seq", s.seq, "id", s.opts.Identifier, "bytes", len(req))
	return s.seq, nil
}

// AwaitReply blocks until a reply to this session arrives. Frames from other
// hosts, with another identifier or of another type are discarded. On
// ErrTimeout or ErrInterrupted the session is back to Idle; any other error
// leaves it Failed.
func (s *Session) AwaitReply() (Reply, error) {
	if s.state != AwaitingReply {
		return Reply{}, fmt.Errorf("no echo request outstanding (state %s)", s.state)
	}

	var deadline time.Time
	if s.opts.Timeout > 0 {
		deadline = s.sentAt.Add(s.opts.Timeout)
	}

	for {
		frame, err := s.readFrame(deadline)
		if err != nil {
			if errors.Is(err, ErrTimeout) || errors.Is(err, ErrInterrupted) {
				s.state = Idle
			} else {
				s.state = Failed
			}
			return Reply{}, err
		}
		if reply, ok := s.match(frame); ok {
			s.state = Matched
			return reply, nil
		}
		s.state = AwaitingReply
	}
}

// Interrupt makes a pending AwaitReply, and every later one, return
// ErrInterrupted. It wakes a read blocked without a deadline.
func (s *Session) Interrupt() {
	s.interrupted.Store(true)
	if err := s.conn.SetReadDeadline(aLongTimeAgo); err != nil {
		s.logger.Debug("Failed to expire read deadline.", "error", err)
	}
}

// Close releases the socket.
func (s *Session) Close() error {
	return s.conn.Close()
}

// readFrame returns the next complete IPv4 frame. A frame whose total length
// exceeds what has been read so far is completed with further reads; bytes
// read past its end are kept for the next frame.
func (s *Session) readFrame(deadline time.Time) ([]byte, error) {
	for {
		n, ok := packet.FrameLength(s.pending)
		for !ok {
			if err := s.read(deadline); err != nil {
				return nil, err
			}
			n, ok = packet.FrameLength(s.pending)
		}

		if version := s.pending[0] >> 4; version != 4 || n < packet.MinIPHeaderLen+packet.HeaderLen {
			s.logger.Debug("Dropping buffered bytes that do not start an IPv4 frame.", "version", version, "total_length", n, "buffered", len(s.pending))
			s.pending = s.pending[:0]
			continue
		}

		remaining := n - len(s.pending)
		for remaining > 0 {
			s.state = Reassembling
			before := len(s.pending)
			if err := s.read(deadline); err != nil {
				return nil, err
			}
			remaining -= len(s.pending) - before
		}

		frame := append([]byte(nil), s.pending[:n]...)
		s.pending = append(s.pending[:0], s.pending[n:]...)
		return frame, nil
	}
}

func (s *Session) read(deadline time.Time) error {
	if s.interrupted.Load() {
		return ErrInterrupted
	}
	if !deadline.IsZero() && !s.now().Before(deadline) {
		return ErrTimeout
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrReceive, err)
	}
	// Interrupt may have expired the deadline just before it was re-armed.
	if s.interrupted.Load() {
		return ErrInterrupted
	}
	n, err := s.conn.Recv(s.chunk)
	if err != nil {
		if s.interrupted.Load() {
			return ErrInterrupted
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %w", ErrReceive, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: empty read", ErrReceive)
	}
	s.pending = append(s.pending, s.chunk[:n]...)
	return nil
}

func (s *Session) match(raw []byte) (Reply, bool) {
	f, err := packet.DecodeInboundFrame(raw)
	if err != nil {
		s.discard("Discarding malformed frame.", raw, "error", err)
		return Reply{}, false
	}
	if f.IP.Source != s.target4 {
		s.discard("Ignoring frame from another host.", raw, "source", f.IP.SourceIP().String())
		return Reply{}, false
	}
	if !packet.IsReplyTo(f.Message, s.opts.Identifier) {
		s.discard("Ignoring ICMP message not addressed to this session.", raw, "type", f.Message.Type, "id", f.Message.Identifier)
		return Reply{}, false
	}
	if f.Message.Sequence != s.seq {
		s.discard("Ignoring late reply from an earlier round.", raw, "seq", f.Message.Sequence, "want_seq", s.seq)
		return Reply{}, false
	}
	if s.opts.VerifyChecksum && !f.VerifyChecksum() {
		s.discard("Discarding reply with bad checksum.", raw, "checksum", f.Message.Checksum)
		return Reply{}, false
	}

	return Reply{
		Target:     s.target,
		Identifier: f.Message.Identifier,
		Sequence:   f.Message.Sequence,
		TTL:        f.IP.TTL,
		Bytes:      len(f.ICMP),
		RTT:        s.now().Sub(s.sentAt),
	}, true
}

func (s *Session) discard(msg string, raw []byte, args ...any) {
	if !s.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	args = append(args, "frame", packet.Describe(raw))
	s.logger.Debug(msg, args...)
}
