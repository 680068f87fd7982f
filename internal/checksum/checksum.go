// Package checksum implements the RFC 1071 internet checksum used by ICMP.
package checksum

// Checksum returns the one's-complement internet checksum of b.
//
// The buffer is summed as big-endian 16-bit words; an odd trailing byte is
// padded with zero. Write the result big-endian to put it in network order.
func Checksum(b []byte) uint16 {
	return ^fold(sum(b))
}

// Verify reports whether b, checksum field included, sums to 0xFFFF.
func Verify(b []byte) bool {
	return fold(sum(b)) == 0xffff
}

func sum(b []byte) uint32 {
	var s uint32
	n := len(b) &^ 1
	for i := 0; i < n; i += 2 {
		s += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		s += uint32(b[len(b)-1]) << 8
	}
	return s
}

// fold adds the carries back into the low 16 bits until none remain.
func fold(s uint32) uint16 {
	for s > 0xffff {
		s = (s >> 16) + (s & 0xffff)
	}
	return uint16(s)
}
