package password

import (
	"strings"
	"testing"
)

func cheapConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	t.Parallel()
	cfg := cheapConfig()

	h, err := cfg.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %q", h)
	}

	ok, err := cfg.Verify(h, "correct horse")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	t.Parallel()
	cfg := cheapConfig()

	h, err := cfg.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := cfg.Verify(h, "battery staple")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_SaltsDiffer(t *testing.T) {
	t.Parallel()
	cfg := cheapConfig()

	a, err := cfg.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := cfg.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct salts to produce distinct hashes")
	}
}

func TestDummyHash_NeverMatchesUserInput(t *testing.T) {
	t.Parallel()
	cfg := cheapConfig()

	h, err := cfg.DummyHash()
	if err != nil {
		t.Fatalf("DummyHash: %v", err)
	}
	ok, err := cfg.Verify(h, "anything")
	if err != nil || ok {
		t.Fatalf("dummy hash verify: ok=%v err=%v", ok, err)
	}
}

func TestValidate_MinMax(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("12345"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("sixsix"); err != nil {
		t.Fatalf("expected six runes to pass, got %v", err)
	}
	if err := cfg.Validate("ääääää"); err != nil {
		t.Fatalf("expected runes, not bytes, to be counted: %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	t.Parallel()
	cfg := cheapConfig()

	cases := []string{
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5",
	}
	for _, h := range cases {
		ok, err := cfg.Verify(h, "whatever")
		if err != ErrInvalidHash || ok {
			t.Fatalf("Verify(%q)=(%v,%v) want (false, ErrInvalidHash)", h, ok, err)
		}
	}
}

func TestVerify_RejectsExpensiveParams(t *testing.T) {
	t.Parallel()

	heavy := cheapConfig()
	heavy.Params.Iterations = 5
	h, err := heavy.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	light := cheapConfig()
	if ok, err := light.Verify(h, "correct horse"); err != ErrInvalidHash || ok {
		t.Fatalf("expected ErrInvalidHash for over-budget params, got ok=%v err=%v", ok, err)
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true

	for _, pw := range []string{"password", "qwerty", "aaaaaaa", "1234567"} {
		if err := cfg.Validate(pw); err != ErrWeakPassword {
			t.Fatalf("Validate(%q)=%v want ErrWeakPassword", pw, err)
		}
	}
	if err := cfg.Validate("tangerine-88"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}
