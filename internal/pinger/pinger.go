// Package pinger is the unprivileged fallback used when no raw socket can
// be opened. It drives go-ping over a UDP ICMP socket, which Linux allows
// for users within net.ipv4.ping_group_range.
package pinger

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-ping/ping"

	"echoping/internal/echo"
	"echoping/internal/transport"
)

// Options configures the fallback pinger.
type Options struct {
	Interval time.Duration
	// Timeout is the per-reply wait; with Count it bounds the whole run.
	Timeout time.Duration
	Count   int
	Size    int
}

type engine interface {
	Run() error
	Stop()
}

// newEngine is a package-level variable so tests can replace go-ping.
var newEngine = func(target net.IP, opts Options, onRecv func(*ping.Packet)) (engine, error) {
	p, err := ping.NewPinger(target.String())
	if err != nil {
		return nil, err
	}
	p.SetPrivileged(false)
	p.Interval = opts.Interval
	p.Size = opts.Size
	if opts.Count > 0 {
		p.Count = opts.Count
		p.Timeout = time.Duration(opts.Count)*opts.Interval + opts.Timeout
	}
	p.OnRecv = onRecv
	return p, nil
}

// Run pings target until ctx is cancelled or Count replies are in. go-ping
// reports no per-request events, so only replies reach the reporter.
func Run(ctx context.Context, target net.IP, opts Options, rep echo.Reporter, parentLogger *slog.Logger) error {
	logger := parentLogger.With(slog.String("component", "pinger"), slog.String("target", target.String()))

	eng, err := newEngine(target, opts, func(pkt *ping.Packet) {
		logger.Debug("Echo reply received.", "seq", pkt.Seq, "rtt", pkt.Rtt)
		rep.Replied(toReply(target, pkt))
	})
	if err != nil {
		err = fmt.Errorf("unprivileged ping: %w", err)
		rep.Failed(err)
		return err
	}

	stop := context.AfterFunc(ctx, eng.Stop)
	defer stop()

	logger.Info("Using unprivileged ICMP fallback.", "interval", opts.Interval, "count", opts.Count)
	if err := eng.Run(); err != nil {
		err = fmt.Errorf("unprivileged ping: %w", err)
		rep.Failed(err)
		return err
	}
	return nil
}

func toReply(target net.IP, pkt *ping.Packet) transport.Reply {
	return transport.Reply{
		Target:   target,
		Sequence: uint16(pkt.Seq),
		TTL:      uint8(pkt.Ttl),
		Bytes:    pkt.Nbytes,
		RTT:      pkt.Rtt,
	}
}
