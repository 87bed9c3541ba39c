package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandlerLevelFiltering(t *testing.T) {
	h := NewHandler()
	h.SetLevel(slog.LevelWarn)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be filtered when level is warn")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should pass when level is warn")
	}
}

func TestHandlerWritesToConfiguredStream(t *testing.T) {
	h := NewHandler()
	var buf bytes.Buffer
	h.SetStream(&buf)
	h.SetFormatter(NewPrettyFormatter(false))

	logger := slog.New(h).WithGroup("test")
	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") {
		t.Fatalf("output missing message: %q", out)
	}
	if !strings.Contains(out, "[test]") {
		t.Fatalf("output missing group: %q", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Fatalf("output missing attr: %q", out)
	}
}

func TestHandlerWithGroupNesting(t *testing.T) {
	h := NewHandler()
	var buf bytes.Buffer
	h.SetStream(&buf)
	h.SetFormatter(NewPrettyFormatter(false))

	logger := slog.New(h).WithGroup("spfs").WithGroup("solve")
	logger.Info("resolving")

	if !strings.Contains(buf.String(), "[spfs.solve]") {
		t.Fatalf("expected nested group tag, got %q", buf.String())
	}
}

func TestHandlerWithAttrsPersist(t *testing.T) {
	h := NewHandler()
	var buf bytes.Buffer
	h.SetStream(&buf)
	h.SetFormatter(NewPrettyFormatter(false))

	logger := slog.New(h).With("request", "basic")
	logger.Info("picked candidate")

	if !strings.Contains(buf.String(), "request=basic") {
		t.Fatalf("expected persisted attr, got %q", buf.String())
	}
}

func TestPrettyFormatterVerboseIncludesTimestamp(t *testing.T) {
	f := NewPrettyFormatter(false)
	f.SetVerbose(true)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	out := string(f.Format(r, ""))
	if strings.Count(out, " ") < 2 {
		t.Fatalf("expected timestamp prefix in verbose mode, got %q", out)
	}
}
