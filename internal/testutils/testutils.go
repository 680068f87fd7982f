package testutils

import (
	"bytes"
	"log/slog"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// SetupTestLogger creates a new slog.Logger that writes to a bytes.Buffer,
// configured for DEBUG level. Returns the logger and the buffer.
func SetupTestLogger() (*slog.Logger, *bytes.Buffer) {
	var logBuf bytes.Buffer
	handler := slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &logBuf
}

// IPv4Frame wraps an ICMP message in an IPv4 header from src to dst, the way
// a raw ICMP socket delivers it.
func IPv4Frame(src, dst net.IP, icmp []byte) []byte {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    src.To4(),
		DstIP:    dst.To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload(icmp)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
