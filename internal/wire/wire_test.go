package wire

import (
	"bytes"
	"testing"
)

func TestEntryRoundTrip(t *testing.T) {
	payload := []byte("hello world")
	b := EncodeEntry(payload)

	got, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q != %q", got, payload)
	}
}

func TestEmptyPayload(t *testing.T) {
	b := EncodeEntry(nil)
	got, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got))
	}
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	cases := map[string][]byte{
		"empty":       {},
		"short":       {'T', 'G', 'P', 'C', 1},
		"bad magic":   append([]byte("XXXX"), EncodeEntry([]byte("v"))[4:]...),
		"bad version": {'T', 'G', 'P', 'C', 99, kindEntry, 0, 0, 0, 0},
		"bad kind":    {'T', 'G', 'P', 'C', version, 99, 0, 0, 0, 0},
		"truncated":   EncodeEntry([]byte("some payload"))[:12],
		"overlong":    {'T', 'G', 'P', 'C', version, kindEntry, 0xFF, 0xFF, 0xFF, 0xFF, 'x'},
	}
	for name, b := range cases {
		if _, err := DecodeEntry(b); err == nil {
			t.Fatalf("%s: expected ErrCorrupt", name)
		}
	}
}
