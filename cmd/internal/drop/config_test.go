package drop

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"VANISH_DROP_MAX_VIEWS", "VANISH_DROP_MAX_TTL", "VANISH_DROP_MAX_TITLE_RUNES",
		"VANISH_DROP_MAX_BODY_BYTES", "VANISH_DROP_LINK_PREFIX", "VANISH_DROP_REVOKE_SCOPE",
	} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg=%+v want defaults", cfg)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("VANISH_DROP_MAX_VIEWS", "10")
	t.Setenv("VANISH_DROP_MAX_TTL", "48h")
	t.Setenv("VANISH_DROP_REVOKE_SCOPE", "Owner")
	t.Setenv("VANISH_DROP_LINK_PREFIX", "https://v.example/d/")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.MaxViewsLimit != 10 || cfg.MaxTTL != 48*time.Hour || cfg.RevokeScope != RevokeOwner {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.LinkPrefix != "https://v.example/d/" {
		t.Fatalf("prefix=%q", cfg.LinkPrefix)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"VANISH_DROP_MAX_VIEWS":      "0",
		"VANISH_DROP_MAX_TTL":        "soon",
		"VANISH_DROP_MAX_BODY_BYTES": "-1",
		"VANISH_DROP_REVOKE_SCOPE":   "everyone",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("%s=%q err=%v want ErrConfig", k, v, err)
			}
		})
	}
}
