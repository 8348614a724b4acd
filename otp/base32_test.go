package otp

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestBase32RoundTrip(t *testing.T) {
	for _, size := range []int{5, 10, 20, 35} {
		raw := make([]byte, size)
		if _, err := rand.Read(raw); err != nil {
			t.Fatalf("rand failed: %v", err)
		}

		decoded, err := DecodeBase32(EncodeBase32(raw))
		if err != nil {
			t.Fatalf("decode failed for size %d: %v", size, err)
		}
		if !bytes.Equal(decoded, raw) {
			t.Fatalf("round trip mismatch for size %d", size)
		}
	}
}

func TestBase32RoundTripPartialBlocks(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 6, 7, 19} {
		raw := make([]byte, size)
		if _, err := rand.Read(raw); err != nil {
			t.Fatalf("rand failed: %v", err)
		}

		encoded := EncodeBase32(raw)
		if len(encoded)%8 != 0 {
			t.Fatalf("expected padded 8-character blocks, got %q", encoded)
		}
		decoded, err := DecodeBase32(encoded)
		if err != nil {
			t.Fatalf("decode failed for size %d: %v", size, err)
		}
		if !bytes.Equal(decoded, raw) {
			t.Fatalf("round trip mismatch for size %d", size)
		}
	}
}

func TestDecodeBase32NormalizesInput(t *testing.T) {
	want, err := DecodeBase32("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	variants := []string{
		"jbswy3dpehpk3pxp",
		"JBSW Y3DP EHPK 3PXP",
		"JBSW-Y3DP-EHPK-3PXP",
		"jbsw y3dp-EHPK 3pxp",
	}
	for _, v := range variants {
		got, err := DecodeBase32(v)
		if err != nil {
			t.Fatalf("decode failed for %q: %v", v, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("decode mismatch for %q", v)
		}
	}
}

func TestDecodeBase32RejectsInvalidInput(t *testing.T) {
	for _, s := range []string{"", "   ", "ABC1DEFG", "ABC!DEFG", "ABC8DEFG"} {
		if _, err := DecodeBase32(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
