package buf

import (
	"math"
	"testing"
)

func TestSlice(t *testing.T) {
	b := []byte{1, 2, 3, 4}

	tests := []struct {
		name string
		off  int
		n    int
		ok   bool
	}{
		{"full", 0, 4, true},
		{"middle", 1, 2, true},
		{"empty at end", 4, 0, true},
		{"past end", 2, 3, false},
		{"negative offset", -1, 2, false},
		{"negative length", 0, -1, false},
		{"overflowing end", 1, math.MaxInt, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Slice(b, tt.off, tt.n)
			if ok != tt.ok {
				t.Fatalf("Slice(%d, %d) ok = %v, want %v", tt.off, tt.n, ok, tt.ok)
			}
			if ok && len(s) != tt.n {
				t.Fatalf("Slice(%d, %d) len = %d, want %d", tt.off, tt.n, len(s), tt.n)
			}
		})
	}
}

func TestEndianShortBuffers(t *testing.T) {
	if U16LE([]byte{1}) != 0 || U32LE([]byte{1, 2, 3}) != 0 || U64LE(nil) != 0 {
		t.Fatal("short buffers must decode to zero")
	}
	if U32LE([]byte{0x78, 0x56, 0x34, 0x12}) != 0x12345678 {
		t.Fatal("U32LE misdecoded")
	}
}
