package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger the rest of the code depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"` // text or json
	Modules map[string]string `toml:"modules"`
}

// levelFor returns the level for module: its own entry, else the global
// level, else info.
func (c Config) levelFor(module string) slog.Level {
	if l, ok := parseLevel(c.Modules[module]); ok {
		return l
	}
	if l, ok := parseLevel(c.Level); ok {
		return l
	}
	return slog.LevelInfo
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// registry holds the process-wide logging state. Loggers handed out by
// GetLogger stay valid across Initialize calls: their level is a LevelVar
// and their stdout format is looked up per record.
type registry struct {
	mu       sync.RWMutex
	config   Config
	modules  map[string]*moduleLogger
	root     *slog.LevelVar
	json     bool
	buffer   *RingBuffer
	callback LogCallback
}

var std = newRegistry()

func newRegistry() *registry {
	return &registry{modules: make(map[string]*moduleLogger), root: &slog.LevelVar{}}
}

// Initialize applies config. It can be called again at any time, e.g. when
// the config file changes; existing loggers pick up the new levels.
func Initialize(config Config) {
	std.mu.Lock()
	defer std.mu.Unlock()

	std.config = config
	std.json = strings.EqualFold(config.Format, "json")
	if std.buffer == nil {
		std.buffer = NewRingBuffer(defaultBufferSize)
	}

	std.root.Set(config.levelFor(""))
	for name, m := range std.modules {
		m.level.Set(config.levelFor(name))
	}
	slog.SetDefault(slog.New(std.handler(std.root)))
}

// GetBuffer returns the ring buffer of recent log entries, nil before Initialize.
func GetBuffer() *RingBuffer {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.buffer
}

// SetLogCallback registers a function called for every log entry, after it
// has been buffered. It is how log lines reach the event bus.
func SetLogCallback(callback LogCallback) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.callback = callback
}

// GetLogger returns the logger for module, creating it on first use. Every
// record it writes carries a module attribute.
func GetLogger(module string) *slog.Logger {
	std.mu.RLock()
	m, ok := std.modules[module]
	std.mu.RUnlock()
	if ok {
		return m.logger
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if m, ok := std.modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	level.Set(std.config.levelFor(module))
	m = &moduleLogger{
		logger: slog.New(std.handler(level)).With("module", module),
		level:  level,
	}
	std.modules[module] = m
	return m.logger
}

// handler builds the chain behind one logger: stdout, the journal, and the
// ring buffer behind the web log view. Under systemd stdout already ends up
// in the journal, so the journal handler is only added when stdout goes
// somewhere else.
func (r *registry) handler(level slog.Leveler) slog.Handler {
	var stdout slog.Handler
	if isStdoutAvailable() {
		stdout = newFormatHandler(os.Stdout, level, func() bool {
			r.mu.RLock()
			defer r.mu.RUnlock()
			return r.json
		})
	}

	var journald slog.Handler
	if IsJournalAvailable() && !stdoutIsJournal() {
		journald = NewJournalHandler(level)
	}

	return NewMultiHandler(stdout, journald, NewBufferHandler(level))
}

func (r *registry) sinks() (*RingBuffer, LogCallback) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buffer, r.callback
}

// stdoutIsJournal reports whether stdout is connected to journald, as it is
// for a systemd service with the default StandardOutput=journal.
func stdoutIsJournal() bool {
	ok, err := journal.StdoutIsJournalStream()
	return err == nil && ok
}

// isStdoutAvailable reports whether stdout is open as a terminal, pipe,
// socket or regular file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts a level name to a slog.Level.
func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
