package rtp

import "testing"

func TestPCMToMuLaw(t *testing.T) {
	// reference values of the G.711 mu-law table
	for _, tc := range []struct {
		sample int16
		want   byte
	}{
		{0, 0xFF},
		{32124, 0x80},
		{-32124, 0x00},
		{32767, 0x80}, // clipped
	} {
		if got := PCMToMuLaw(tc.sample); got != tc.want {
			t.Errorf("PCMToMuLaw(%d) = %#02x, want %#02x", tc.sample, got, tc.want)
		}
	}
}

func TestPCMToALaw(t *testing.T) {
	for _, tc := range []struct {
		sample int16
		want   byte
	}{
		{0, 0xD5},  // positive silence
		{-1, 0x55}, // negative silence
	} {
		if got := PCMToALaw(tc.sample); got != tc.want {
			t.Errorf("PCMToALaw(%d) = %#02x, want %#02x", tc.sample, got, tc.want)
		}
	}
}

func TestEncodeG711(t *testing.T) {
	pcm := []int16{0, 0, 0, 0}

	out := EncodeG711(pcm, PCMU)
	if len(out) != len(pcm) {
		t.Fatalf("length = %d", len(out))
	}
	for _, b := range out {
		if b != 0xFF {
			t.Fatalf("mu-law silence = %#02x", b)
		}
	}

	out = EncodeG711(pcm, PCMA)
	for _, b := range out {
		if b != 0xD5 {
			t.Fatalf("a-law silence = %#02x", b)
		}
	}

	// unknown payload types fall back to mu-law
	out = EncodeG711(pcm, 96)
	if out[0] != 0xFF {
		t.Fatalf("fallback = %#02x", out[0])
	}
}
