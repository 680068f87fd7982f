// Package packet encodes ICMP echo requests and decodes raw IPv4 frames
// carrying ICMP messages.
package packet

import (
	"encoding/binary"
	"errors"
	"net"

	"golang.org/x/net/ipv4"

	"echoping/internal/checksum"
)

const (
	// HeaderLen is the length of an ICMP echo header.
	HeaderLen = 8

	// MinIPHeaderLen is the length of an IPv4 header without options.
	MinIPHeaderLen = ipv4.HeaderLen
)

// ICMP message types used by the echo exchange.
const (
	TypeEchoReply   = uint8(ipv4.ICMPTypeEchoReply)
	TypeEchoRequest = uint8(ipv4.ICMPTypeEcho)
)

// ErrTooShort is returned when a frame cannot hold the IP header it
// announces plus an ICMP echo header.
var ErrTooShort = errors.New("frame too short")

// Message is an ICMP echo message.
type Message struct {
	Type       uint8
	Code       uint8
	Checksum   uint16
	Identifier uint16
	Sequence   uint16
	Payload    []byte
}

// IPHeader is the part of an IPv4 header needed to locate and filter the
// ICMP message.
type IPHeader struct {
	HeaderLen   int
	TotalLength uint16
	TTL         uint8
	Source      [4]byte
}

// SourceIP returns the source address as a net.IP.
func (h IPHeader) SourceIP() net.IP {
	return net.IPv4(h.Source[0], h.Source[1], h.Source[2], h.Source[3])
}

// Frame is a decoded inbound IPv4 datagram.
type Frame struct {
	IP      IPHeader
	Message Message
	// ICMP holds the raw ICMP bytes, checksum field included.
	ICMP []byte
}

// Encode serializes m and fills in its checksum. The Checksum field of m is
// ignored.
func Encode(m Message) []byte {
	b := make([]byte, HeaderLen+len(m.Payload))
	b[0] = m.Type
	b[1] = m.Code
	binary.BigEndian.PutUint16(b[4:6], m.Identifier)
	binary.BigEndian.PutUint16(b[6:8], m.Sequence)
	copy(b[HeaderLen:], m.Payload)
	binary.BigEndian.PutUint16(b[2:4], checksum.Checksum(b))
	return b
}

// EncodeEchoRequest builds a checksummed ICMP Echo Request.
func EncodeEchoRequest(id, seq uint16, payload []byte) []byte {
	return Encode(Message{
		Type:       TypeEchoRequest,
		Identifier: id,
		Sequence:   seq,
		Payload:    payload,
	})
}

// DecodeInboundFrame parses an IPv4 header followed by an ICMP echo header.
// The ICMP checksum is not verified; see VerifyChecksum.
func DecodeInboundFrame(raw []byte) (Frame, error) {
	if len(raw) < 1 {
		return Frame{}, ErrTooShort
	}
	hlen := int(raw[0]&0x0f) * 4
	if hlen < MinIPHeaderLen || len(raw) < hlen+HeaderLen {
		return Frame{}, ErrTooShort
	}

	var f Frame
	f.IP.HeaderLen = hlen
	f.IP.TotalLength = binary.BigEndian.Uint16(raw[2:4])
	f.IP.TTL = raw[8]
	copy(f.IP.Source[:], raw[12:16])

	icmp := raw[hlen:]
	if end := int(f.IP.TotalLength); end >= hlen+HeaderLen && end < len(raw) {
		icmp = raw[hlen:end]
	}
	f.ICMP = icmp
	f.Message = Message{
		Type:       icmp[0],
		Code:       icmp[1],
		Checksum:   binary.BigEndian.Uint16(icmp[2:4]),
		Identifier: binary.BigEndian.Uint16(icmp[4:6]),
		Sequence:   binary.BigEndian.Uint16(icmp[6:8]),
		Payload:    icmp[HeaderLen:],
	}
	return f, nil
}

// VerifyChecksum reports whether the ICMP checksum of f is valid.
func (f Frame) VerifyChecksum() bool {
	return checksum.Verify(f.ICMP)
}

// IsReplyTo reports whether m is an Echo Reply carrying identifier id.
// The code field is not checked.
func IsReplyTo(m Message, id uint16) bool {
	return m.Type == TypeEchoReply && m.Identifier == id
}

// FrameLength returns the IPv4 total length announced by a frame prefix.
// ok is false until the length field has been received.
func FrameLength(prefix []byte) (n int, ok bool) {
	if len(prefix) < 4 {
		return 0, false
	}
	return int(binary.BigEndian.Uint16(prefix[2:4])), true
}
