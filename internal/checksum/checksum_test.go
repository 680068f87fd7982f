package checksum

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{name: "Empty buffer", data: nil, want: 0xffff},
		{name: "All zero even length", data: make([]byte, 64), want: 0xffff},
		{name: "All zero odd length", data: make([]byte, 7), want: 0xffff},
		// RFC 1071 section 3 example.
		{name: "RFC 1071 example", data: []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}, want: ^uint16(0xddf2)},
		{name: "Odd trailing byte padded", data: []byte{0x01}, want: ^uint16(0x0100)},
		{name: "Carry folded", data: []byte{0xff, 0xff, 0x00, 0x01}, want: ^uint16(0x0001)},
		{name: "Echo request header", data: []byte{0x08, 0x00, 0x00, 0x00, 0x12, 0x34, 0x00, 0x01}, want: 0xe5ca},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum(%x) = %#04x, want %#04x", tt.data, got, tt.want)
			}
		})
	}
}

// Writing the checksum into a zeroed field and recomputing with the field
// zeroed again must give back the stored value, and the full buffer must verify.
func TestChecksum_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		size := 4 + rng.Intn(1500)
		buf := make([]byte, size)
		rng.Read(buf)
		buf[2], buf[3] = 0, 0

		sum := Checksum(buf)
		binary.BigEndian.PutUint16(buf[2:4], sum)

		if !Verify(buf) {
			t.Fatalf("size %d: Verify() = false after writing checksum %#04x", size, sum)
		}

		stored := binary.BigEndian.Uint16(buf[2:4])
		buf[2], buf[3] = 0, 0
		if got := Checksum(buf); got != stored {
			t.Fatalf("size %d: recomputed checksum %#04x, stored %#04x", size, got, stored)
		}
	}
}

func TestVerify_Corrupted(t *testing.T) {
	buf := []byte{0x08, 0x00, 0x00, 0x00, 0x12, 0x34, 0x00, 0x01}
	binary.BigEndian.PutUint16(buf[2:4], Checksum(buf))
	buf[5] ^= 0x01
	if Verify(buf) {
		t.Error("Verify() = true for a corrupted buffer")
	}
}
