// File: internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxPayloadSize keeps an echo request inside one IPv4 datagram.
	MaxPayloadSize = 65535 - 20 - 8

	// PayloadFill is the byte echo payloads are filled with.
	PayloadFill = 0x90
)

// Config centralises all runtime parameters.
type Config struct {
	Host           string
	Interval       time.Duration
	Timeout        time.Duration
	Count          int
	PayloadSize    int
	Identifier     int // -1 derives the identifier from the process id
	VerifyChecksum bool
	Unprivileged   bool
	LogLevel       string
	LogFormat      string
	LogFile        string
}

// Default returns the configuration used when no flag overrides it.
func Default() *Config {
	return &Config{
		Interval:       time.Second,
		Timeout:        5 * time.Second,
		PayloadSize:    56,
		Identifier:     -1,
		VerifyChecksum: true,
		LogLevel:       "INFO",
		LogFormat:      "text",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing required argument: <host>")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("--timeout must not be negative")
	}
	if c.Count < 0 {
		return fmt.Errorf("--count must not be negative")
	}
	if c.PayloadSize < 0 || c.PayloadSize > MaxPayloadSize {
		return fmt.Errorf("--size must be between 0 and %d", MaxPayloadSize)
	}
	if c.Identifier < -1 || c.Identifier > 0xffff {
		return fmt.Errorf("--id must be between 0 and 65535, or -1 for the process id")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("--log-level must be one of DEBUG, INFO, WARN, ERROR")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("--log-format must be either 'text' or 'json'")
	}
	return nil
}

// Payload returns the echo payload: PayloadSize filler bytes.
func (c *Config) Payload() []byte {
	return bytes.Repeat([]byte{PayloadFill}, c.PayloadSize)
}

// EchoIdentifier resolves the configured identifier, using pid when it is -1.
func (c *Config) EchoIdentifier(pid uint16) uint16 {
	if c.Identifier < 0 {
		return pid
	}
	return uint16(c.Identifier)
}
