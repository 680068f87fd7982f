// Package echo drives rounds of ICMP echo over a transport session.
package echo

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"echoping/internal/transport"
)

// DefaultInterval is the pause between two rounds.
const DefaultInterval = time.Second

// Exchanger performs one echo exchange at a time. *transport.Session
// implements it. Interrupt is called from another goroutine and must make a
// pending AwaitReply return transport.ErrInterrupted.
type Exchanger interface {
	Send() (uint16, error)
	AwaitReply() (transport.Reply, error)
	Target() net.IP
	Interrupt()
}

// Request describes an echo request that has been sent.
type Request struct {
	Target   net.IP
	Sequence uint16
}

// Reporter receives the events of a Loop.
type Reporter interface {
	Sent(req Request)
	Replied(reply transport.Reply)
	TimedOut(req Request)
	Failed(err error)
}

// Options configures a Loop.
type Options struct {
	// Interval defaults to DefaultInterval.
	Interval time.Duration
	// Count stops the loop after that many rounds. Zero runs until the
	// context is cancelled.
	Count  int
	Logger *slog.Logger
}

// Loop sends one request per round and waits for its reply before pausing
// for the next round.
type Loop struct {
	session  Exchanger
	reporter Reporter
	interval time.Duration
	count    int
	logger   *slog.Logger
}

// New creates a Loop.
func New(session Exchanger, reporter Reporter, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		session:  session,
		reporter: reporter,
		interval: opts.Interval,
		count:    opts.Count,
		logger:   logger.With(slog.String("component", "echo")),
	}
}

// Run executes rounds until ctx is cancelled, Count rounds are done or a
// fatal error occurs. A new round never starts once ctx is done, and a
// round waiting for its reply is interrupted. Cancellation returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("Echo loop started.", "target", l.session.Target().String(), "interval", l.interval, "count", l.count)

	stop := context.AfterFunc(ctx, l.session.Interrupt)
	defer stop()

	for round := 1; ; round++ {
		if ctx.Err() != nil {
			l.logger.Debug("Cancelled before round.", "round", round)
			return nil
		}
		err := l.round()
		if errors.Is(err, transport.ErrInterrupted) {
			l.logger.Debug("Cancelled while awaiting reply.", "round", round)
			return nil
		}
		if err != nil {
			l.logger.Error("Echo round failed.", "round", round, "error", err)
			l.reporter.Failed(err)
			return err
		}
		if l.count > 0 && round >= l.count {
			l.logger.Debug("Round limit reached.", "rounds", round)
			return nil
		}
		if !l.pause(ctx) {
			l.logger.Debug("Cancelled during pause.", "round", round)
			return nil
		}
	}
}

func (l *Loop) round() error {
	seq, err := l.session.Send()
	if err != nil {
		return err
	}
	req := Request{Target: l.session.Target(), Sequence: seq}
	l.reporter.Sent(req)

	reply, err := l.session.AwaitReply()
	switch {
	case errors.Is(err, transport.ErrTimeout):
		l.logger.Debug("No reply before timeout.", "seq", seq)
		l.reporter.TimedOut(req)
		return nil
	case err != nil:
		return err
	}
	l.reporter.Replied(reply)
	return nil
}

func (l *Loop) pause(ctx context.Context) bool {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
