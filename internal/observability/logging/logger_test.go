package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerTagsServiceAndFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "order-pipeline", "warn")

	log.Info("dropped")
	log.Warn("kept", "item_id", "abc")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "order-pipeline" {
		t.Errorf("service = %v, want order-pipeline", line["service"])
	}
	if line["msg"] != "kept" {
		t.Errorf("msg = %v, want kept", line["msg"])
	}
	if line["item_id"] != "abc" {
		t.Errorf("item_id = %v, want abc", line["item_id"])
	}
}

func TestLoggerDebugLevelRecordsSource(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "order-pipeline", "debug")

	log.Debug("trace me")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := line["source"]; !ok {
		t.Error("debug logger should record source locations")
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
