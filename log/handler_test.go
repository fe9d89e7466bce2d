package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatterHandlerText(t *testing.T) {
	var buf bytes.Buffer
	h := &formatterHandler{out: &buf, level: logLevelToSlogLevel(INFO), f: &TextFormatter{}}
	logger := NewWithHandler(h)

	logger.Info("scheduler started", "process", "Px")

	out := buf.String()
	if !strings.Contains(out, "scheduler started") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "process=Px") {
		t.Errorf("output missing field: %q", out)
	}
	if !strings.Contains(out, "INFO") {
		t.Errorf("output missing level: %q", out)
	}
}

func TestFormatterHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := &formatterHandler{out: &buf, level: logLevelToSlogLevel(WARN), f: &TextFormatter{}}
	logger := NewWithHandler(h)

	logger.Info("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got %q", buf.String())
	}

	logger.Error("should be kept")
	if buf.Len() == 0 {
		t.Error("expected output at or above configured level")
	}
}

func TestFormatterHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &formatterHandler{out: &buf, level: logLevelToSlogLevel(DEBUG), f: &TextFormatter{}}
	logger := NewWithHandler(h).With("module", "scheduler")

	logger.Debug("acquired lock")

	out := buf.String()
	if !strings.Contains(out, "module=scheduler") {
		t.Errorf("output missing inherited attr: %q", out)
	}
}

func TestNewFromConfigJSON(t *testing.T) {
	logger := NewFromConfig("debug", "json")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewFromConfigText(t *testing.T) {
	logger := NewFromConfig("info", "text")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestSlogLevelRoundTrip(t *testing.T) {
	levels := []LogLevel{DEBUG, INFO, WARN, ERROR}
	for _, l := range levels {
		got := slogLevelToLogLevel(logLevelToSlogLevel(l))
		if got != l {
			t.Errorf("round trip for %v produced %v", l, got)
		}
	}
}

func TestFormatterHandlerJSONCompatible(t *testing.T) {
	var buf bytes.Buffer
	h := &formatterHandler{out: &buf, level: logLevelToSlogLevel(INFO), f: &JSONFormatter{}}
	logger := NewWithHandler(h)

	logger.Info("bundle uploaded", "bytes", 128)

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got error: %v, line: %s", err, buf.String())
	}
	if decoded["msg"] != "bundle uploaded" {
		t.Errorf("msg = %v, want 'bundle uploaded'", decoded["msg"])
	}
}
