package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"VANISH_PASSWORD_MIN_LEN",
		"VANISH_PASSWORD_MAX_LEN",
		"VANISH_PASSWORD_REJECT_VERY_WEAK",
		"VANISH_ARGON2_MEMORY_KIB",
		"VANISH_ARGON2_ITERATIONS",
		"VANISH_ARGON2_PARALLELISM",
		"VANISH_ARGON2_SALT_LEN",
		"VANISH_ARGON2_KEY_LEN",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy != def.Policy {
		t.Fatalf("policy mismatch: %+v", cfg.Policy)
	}
	if cfg.Params != def.Params {
		t.Fatalf("params mismatch: %+v", cfg.Params)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("VANISH_PASSWORD_MIN_LEN", "10")
	t.Setenv("VANISH_PASSWORD_MAX_LEN", "200")
	t.Setenv("VANISH_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("VANISH_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("VANISH_ARGON2_ITERATIONS", "4")
	t.Setenv("VANISH_ARGON2_PARALLELISM", "2")
	t.Setenv("VANISH_ARGON2_SALT_LEN", "24")
	t.Setenv("VANISH_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "min above max", env: map[string]string{"VANISH_PASSWORD_MIN_LEN": "20", "VANISH_PASSWORD_MAX_LEN": "10"}},
		{name: "memory too small", env: map[string]string{"VANISH_ARGON2_MEMORY_KIB": "1024"}},
		{name: "not a number", env: map[string]string{"VANISH_ARGON2_ITERATIONS": "three"}},
		{name: "bad bool", env: map[string]string{"VANISH_PASSWORD_REJECT_VERY_WEAK": "maybe"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
