// File: cmd/echoping/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"echoping/internal/config"
	"echoping/internal/echo"
	"echoping/internal/logger"
	"echoping/internal/pinger"
	"echoping/internal/reporter"
	"echoping/internal/resolver"
	"echoping/internal/transport"
)

// reportedError marks errors the console reporter has already printed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

type runFunc func(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error

func main() {
	prog := filepath.Base(os.Args[0])
	cmd := newRootCmd(prog, os.Stdout, os.Stderr, run)
	if err := cmd.Execute(); err != nil {
		var rep reportedError
		if !errors.As(err, &rep) {
			fmt.Fprintf(os.Stderr, "%s : %v\n", prog, err)
		}
		os.Exit(1)
	}
}

// newRootCmd binds the flags to a Config and hands it to runFn.
func newRootCmd(prog string, stdout, stderr io.Writer, runFn runFunc) *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   prog + " [flags] <host>",
		Short: "Send ICMP echo requests to an IPv4 host over a raw socket",
		Long: `Sends one ICMP Echo Request per interval to <host>, an IPv4 address or a
host name, and prints every matching Echo Reply until interrupted.

Raw sockets need root or CAP_NET_RAW. With --unprivileged a UDP ICMP socket
is used instead when the raw socket is refused.`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg.Host = args[0]
			return runFn(cmd.Context(), cfg, stdout, stderr)
		},
	}
	// cobra prints usage through the out writer; stdout is kept for echo lines.
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.DurationVarP(&cfg.Interval, "interval", "i", cfg.Interval, "Pause between two echo requests")
	flags.DurationVarP(&cfg.Timeout, "timeout", "W", cfg.Timeout, "Time to wait for each reply (0 waits forever)")
	flags.IntVarP(&cfg.Count, "count", "c", cfg.Count, "Stop after this many requests (0 runs until interrupted)")
	flags.IntVarP(&cfg.PayloadSize, "size", "s", cfg.PayloadSize, "Echo payload size in bytes")
	flags.IntVar(&cfg.Identifier, "id", cfg.Identifier, "ICMP identifier (-1 uses the process id)")
	flags.BoolVar(&cfg.VerifyChecksum, "verify-checksum", cfg.VerifyChecksum, "Drop replies with an invalid ICMP checksum")
	flags.BoolVar(&cfg.Unprivileged, "unprivileged", cfg.Unprivileged, "Fall back to unprivileged UDP ICMP when raw sockets are refused")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: DEBUG, INFO, WARN, ERROR")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also append logs to this file")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	appLogger, closeLogFile, err := logger.New(stderr, cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLogFile()
	slog.SetDefault(appLogger)

	appLogger.Debug("Configuration loaded.", "host", cfg.Host, "interval", cfg.Interval, "timeout", cfg.Timeout, "count", cfg.Count, "size", cfg.PayloadSize)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := resolver.Resolve(ctx, cfg.Host)
	if err != nil {
		return err
	}

	console := reporter.New(stdout, stderr, filepath.Base(os.Args[0]))
	console.Start(cfg.Host, target)

	conn, err := transport.ListenRaw()
	if err != nil {
		if cfg.Unprivileged && transport.IsPermission(err) {
			appLogger.Warn("Raw socket not permitted, falling back to unprivileged ICMP.", "error", err)
			opts := pinger.Options{Interval: cfg.Interval, Timeout: cfg.Timeout, Count: cfg.Count, Size: cfg.PayloadSize}
			return reported(pinger.Run(ctx, target, opts, console, appLogger))
		}
		return err
	}

	session, err := transport.NewSession(conn, target, transport.Options{
		Identifier:     cfg.EchoIdentifier(transport.DefaultIdentifier()),
		Payload:        cfg.Payload(),
		Timeout:        cfg.Timeout,
		VerifyChecksum: cfg.VerifyChecksum,
		Logger:         appLogger,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer session.Close()

	appLogger.Debug("Raw socket opened.", "target", target.String(), "id", session.Identifier())

	loop := echo.New(session, console, echo.Options{Interval: cfg.Interval, Count: cfg.Count, Logger: appLogger})
	return reported(loop.Run(ctx))
}
