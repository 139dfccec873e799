package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, " Debug ", false, false)
	log.Debug("drop.consume.fail", slog.String("drop_id", "01J"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line: %v (%q)", err, buf.String())
	}
	if line["level"] != "DEBUG" || line["msg"] != "drop.consume.fail" || line["drop_id"] != "01J" {
		t.Fatalf("unexpected record: %v", line)
	}
	if _, ok := line["source"]; !ok {
		t.Fatalf("JSON records carry their source location: %v", line)
	}
}

func TestNewLogger_PrettyFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, "warning", true, false)
	log.Info("server.start")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn: %q", buf.String())
	}

	log.Warn("readyz.db.not_ready", "status", 503)
	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("pretty format must not emit JSON: %q", out)
	}
	if !strings.Contains(out, "[WARN] readyz.db.not_ready") || !strings.Contains(out, "status=503") {
		t.Fatalf("unexpected pretty line: %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" ERROR ": slog.LevelError,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"trace":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", in, got, want)
		}
	}
}
