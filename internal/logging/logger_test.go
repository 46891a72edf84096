package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// resetLogging gives the test a fresh registry.
func resetLogging(t *testing.T) {
	t.Helper()
	saved, savedDefault := std, slog.Default()
	std = newRegistry()
	t.Cleanup(func() {
		std = saved
		slog.SetDefault(savedDefault)
	})
}

func enabled(l *slog.Logger, level slog.Level) bool {
	return l.Handler().Enabled(context.Background(), level)
}

func TestModuleLevels(t *testing.T) {
	resetLogging(t)
	Initialize(Config{
		Level:   "info",
		Modules: map[string]string{"recorder": "debug", "api": "warn", "led": "bogus"},
	})

	tests := []struct {
		module string
		lowest slog.Level
	}{
		{"recorder", slog.LevelDebug},
		{"api", slog.LevelWarn},
		{"led", slog.LevelInfo},
		{"control", slog.LevelInfo},
	}
	for _, tt := range tests {
		logger := GetLogger(tt.module)
		if !enabled(logger, tt.lowest) {
			t.Errorf("%s: %v not enabled", tt.module, tt.lowest)
		}
		if enabled(logger, tt.lowest-1) {
			t.Errorf("%s: level below %v enabled", tt.module, tt.lowest)
		}
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetLogging(t)

	early := GetLogger("camera")
	if enabled(early, slog.LevelDebug) {
		t.Error("default level should be info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"camera": "debug"}})
	if GetLogger("camera") != early {
		t.Error("GetLogger should return the cached logger")
	}
	if !enabled(early, slog.LevelDebug) {
		t.Error("Initialize should raise the level of existing loggers")
	}

	// Reloading with the override removed falls back to the global level.
	Initialize(Config{Level: "error"})
	if enabled(early, slog.LevelWarn) {
		t.Error("reload should lower the level again")
	}
}

func TestConfigLevelFor(t *testing.T) {
	cfg := Config{Level: "WARN", Modules: map[string]string{"api": " debug "}}
	if got := cfg.levelFor("api"); got != slog.LevelDebug {
		t.Errorf("api = %v", got)
	}
	if got := cfg.levelFor("recorder"); got != slog.LevelWarn {
		t.Errorf("recorder = %v", got)
	}
	if got := (Config{}).levelFor("recorder"); got != slog.LevelInfo {
		t.Errorf("empty config = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"Trace", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLevel(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatHandlerSwitches(t *testing.T) {
	var buf bytes.Buffer
	useJSON := false
	logger := slog.New(newFormatHandler(&buf, slog.LevelInfo, func() bool { return useJSON })).With("module", "api")

	logger.Info("first")
	useJSON = true
	logger.WithGroup("req").Info("second", "path", "/api/status")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "level=INFO msg=first module=api") {
		t.Errorf("text line = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"msg":"second","module":"api","req":{"path":"/api/status"}`) {
		t.Errorf("json line = %s", lines[1])
	}
}

func TestMultiHandler(t *testing.T) {
	var debugOut, infoOut bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug}),
		nil,
		slog.NewTextHandler(&infoOut, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(multi).With("module", "camera")

	logger.Debug("only debug")
	logger.Info("both")

	if strings.Count(debugOut.String(), "\n") != 2 {
		t.Errorf("debug handler output:\n%s", debugOut.String())
	}
	if strings.Contains(infoOut.String(), "only debug") || !strings.Contains(infoOut.String(), "module=camera") {
		t.Errorf("info handler output:\n%s", infoOut.String())
	}
	if !multi.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("enabled if any handler is")
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandlerKeepsGoingOnError(t *testing.T) {
	var out bytes.Buffer
	multi := NewMultiHandler(
		failingHandler{slog.NewTextHandler(&out, nil)},
		slog.NewTextHandler(&out, nil),
	)
	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0))
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(out.String(), "msg=hello") {
		t.Error("second handler skipped after the first failed")
	}
}

func TestBufferHandlerRecordsEntries(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})

	var got []LogEntry
	SetLogCallback(func(entry LogEntry) { got = append(got, entry) })

	GetLogger("recorder").Info("Segment opened", "segment", "lecture-2024-05-17T09:00:00", "size", 42)
	GetLogger("recorder").Debug("filtered out")

	if len(got) != 1 {
		t.Fatalf("callback received %d entries, want 1", len(got))
	}
	entry := got[0]
	if entry.Module != "recorder" || entry.Message != "Segment opened" || entry.Level != "info" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Attributes["segment"] != "lecture-2024-05-17T09:00:00" || entry.Attributes["size"] != int64(42) {
		t.Errorf("attributes = %v", entry.Attributes)
	}
	if _, ok := entry.Attributes["module"]; ok {
		t.Error("module should not be repeated as an attribute")
	}

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 || entries[0].Seq != entry.Seq || entry.Seq == 0 {
		t.Errorf("buffer = %+v, callback seq %d", entries, entry.Seq)
	}
}

func TestBufferHandlerAttrsAndGroups(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "debug"})

	var got LogEntry
	SetLogCallback(func(entry LogEntry) { got = entry })

	logger := GetLogger("api").With("request_id", "r1").WithGroup("req").With("method", "GET")
	logger.Info("Request", "path", "/api/status", slog.Group("peer", "addr", "10.0.0.2"),
		"took", 1500*time.Millisecond, "err", errors.New("boom"))

	want := map[string]any{
		"request_id":    "r1",
		"req.method":    "GET",
		"req.path":      "/api/status",
		"req.peer.addr": "10.0.0.2",
		"req.took":      "1.5s",
		"req.err":       "boom",
	}
	if got.Module != "api" {
		t.Errorf("module = %q", got.Module)
	}
	for k, v := range want {
		if got.Attributes[k] != v {
			t.Errorf("%s = %v, want %v (all: %v)", k, got.Attributes[k], v, got.Attributes)
		}
	}
	if len(got.Attributes) != len(want) {
		t.Errorf("attributes = %v", got.Attributes)
	}
}

func TestBufferHandlerWithoutSinks(t *testing.T) {
	resetLogging(t)
	h := NewBufferHandler(slog.LevelInfo)
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "dropped", 0)); err != nil {
		t.Fatal(err)
	}
	if GetBuffer() != nil {
		t.Error("buffer created without Initialize")
	}
}

func TestFormatLogLine(t *testing.T) {
	line := FormatLogLine(LogEntry{
		Timestamp:  time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC),
		Level:      "warn",
		Module:     "recorder",
		Message:    "Segment closed",
		Attributes: map[string]any{"segment": "talk", "frames": 750},
	})
	want := "2024-05-17T09:00:00Z [WARN] [recorder] Segment closed frames=750 segment=talk"
	if line != want {
		t.Errorf("FormatLogLine = %q, want %q", line, want)
	}
}

func TestRingBufferWrapsAround(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	if rb.Count() != 3 {
		t.Fatalf("Count = %d, want 3", rb.Count())
	}
	entries := rb.ReadAll()
	var msgs []string
	for _, e := range entries {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, "") != "cde" {
		t.Errorf("ReadAll = %v, want [c d e]", msgs)
	}
	if entries[0].Seq != 3 || entries[2].Seq != 5 {
		t.Errorf("seqs = %d..%d, want 3..5", entries[0].Seq, entries[2].Seq)
	}

	since := rb.Since(4)
	if len(since) != 1 || since[0].Message != "e" {
		t.Errorf("Since(4) = %+v, want [e]", since)
	}
	if got := NewRingBuffer(3).ReadAll(); len(got) != 0 {
		t.Errorf("empty buffer ReadAll = %+v", got)
	}
}
