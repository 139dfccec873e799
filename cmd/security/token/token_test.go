package token

import (
	"encoding/base64"
	"testing"
)

func TestNew_LengthAndAlphabet(t *testing.T) {
	t.Parallel()

	cases := []struct {
		bytes   int
		wantLen int
	}{
		{bytes: DropBytes, wantLen: 24},
		{bytes: InviteBytes, wantLen: 32},
		{bytes: SessionBytes, wantLen: 43},
		{bytes: 0, wantLen: 43},
	}

	for _, tc := range cases {
		got, err := New(tc.bytes)
		if err != nil {
			t.Fatalf("New(%d): %v", tc.bytes, err)
		}
		if len(got) != tc.wantLen {
			t.Fatalf("New(%d) len=%d want=%d", tc.bytes, len(got), tc.wantLen)
		}
		if _, err := base64.RawURLEncoding.DecodeString(got); err != nil {
			t.Fatalf("New(%d) not base64url: %v", tc.bytes, err)
		}
	}
}

func TestNew_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := New(DropBytes)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[tok] = struct{}{}
	}
}

func TestDigest_SHA256Fallback(t *testing.T) {
	t.Setenv(HMACEnvKey, "")

	if HMACEnabled() {
		t.Fatalf("expected HMAC disabled")
	}
	got := Digest("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("Digest=%q want=%q", got, want)
	}
}

func TestDigest_HMACMode(t *testing.T) {
	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")

	if !HMACEnabled() {
		t.Fatalf("expected HMAC enabled")
	}
	got := Digest("abc")
	if got == HashSHA256Hex("abc") {
		t.Fatalf("expected HMAC digest to differ from plain SHA-256")
	}
	if got != HashHMACSHA256Hex("abc", []byte("0123456789abcdef0123456789abcdef")) {
		t.Fatalf("Digest does not match HMAC helper")
	}
	if len(got) != DigestLen {
		t.Fatalf("digest len=%d", len(got))
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyTooShort {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, "  ")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyMissing {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}
	if HMACEnabled() {
		t.Fatalf("blank key must not enable HMAC")
	}

	t.Setenv(HMACEnvKey, " 0123456789abcdef0123456789abcdef ")
	key, err := HMACKeyFromEnv(32)
	if err != nil || string(key) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("key=%q err=%v", key, err)
	}
}
