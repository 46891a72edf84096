package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camrecorder/internal/logging"
)

// Exit codes Run reports in place of the subprocess's own.
const (
	// ExitStartFailed means the command could not be parsed or started.
	// It is negative so it never collides with a tool's real exit status.
	ExitStartFailed = -1
	// ExitKilled means the subprocess ignored SIGINT and was killed (128+9).
	ExitKilled = 137
)

const maxLineLength = 1 << 20

// LogParser splits a line of subprocess output into a level ("error",
// "warning", "info", "debug", ...) and the message to log.
type LogParser func(line string) (level, msg string)

// StdoutSink consumes the raw stdout of a subprocess, e.g. an encoded video
// stream. Whatever the sink leaves unread is discarded.
type StdoutSink func(r io.Reader)

// Process runs one subprocess. The command line is split with shell-like
// quoting but no shell is involved. The subprocess gets its own process
// group, so stop and kill signals reach the whole pipeline.
type Process struct {
	id      string
	command string
	logger  logging.Logger

	outputLogger logging.Logger
	parseLine    LogParser
	sink         StdoutSink

	mu  sync.Mutex
	cmd *exec.Cmd

	shutdown     chan struct{}
	shutdownOnce sync.Once

	gracePeriod time.Duration // SIGINT to SIGKILL
	killWait    time.Duration // SIGKILL to giving up
}

// NewProcess creates a process for command. Nothing runs until Run.
func NewProcess(id, command string, logger logging.Logger) *Process {
	return &Process{
		id:          id,
		command:     command,
		logger:      logger,
		shutdown:    make(chan struct{}),
		gracePeriod: 5 * time.Second,
		killWait:    5 * time.Second,
	}
}

// ID returns the id given to NewProcess.
func (p *Process) ID() string { return p.id }

// Command returns the command line.
func (p *Process) Command() string { return p.command }

// SetLogParser logs subprocess output to logger at the level parser picks.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.outputLogger = logger
	p.parseLine = parser
}

// SetStdoutSink routes stdout to sink instead of the logger. Stderr is still logged.
func (p *Process) SetStdoutSink(sink StdoutSink) {
	p.sink = sink
}

// Shutdown asks a running Run to stop the subprocess. It is safe to call
// more than once, before Run, or after the subprocess has exited.
func (p *Process) Shutdown() {
	p.shutdownOnce.Do(func() { close(p.shutdown) })
}

// Run starts the subprocess and blocks until it exits, or until ctx is done
// or Shutdown is called, in which case it is stopped with SIGINT and killed
// if it is still there after the grace period. It returns the exit code,
// ExitStartFailed or ExitKilled.
func (p *Process) Run(ctx context.Context) int {
	exited, err := p.start()
	if err != nil {
		p.logger.Error("Failed to start process", "id", p.id, "command", p.command, "error", err)
		return ExitStartFailed
	}

	select {
	case err := <-exited:
		code := exitCode(err)
		if code != 0 {
			p.logger.Warn("Process exited", "id", p.id, "exit_code", code, "error", err)
		} else {
			p.logger.Info("Process exited", "id", p.id)
		}
		return code
	case <-ctx.Done():
		p.logger.Info("Context cancelled, stopping process", "id", p.id)
	case <-p.shutdown:
		p.logger.Info("Shutdown requested, stopping process", "id", p.id)
	}
	return p.stop(exited)
}

// start launches the subprocess. The returned channel yields its exit error
// once all output has been consumed.
func (p *Process) start() (<-chan error, error) {
	args, err := parseCommand(p.command)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()
	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", p.command)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		if p.sink == nil {
			p.logLines(stdout, "stdout")
			return
		}
		p.sink(stdout)
		_, _ = io.Copy(io.Discard, stdout)
	}()
	go func() {
		defer readers.Done()
		p.logLines(stderr, "stderr")
	}()

	exited := make(chan error, 1)
	go func() {
		// Wait closes the pipes, so readers go first.
		readers.Wait()
		exited <- cmd.Wait()
	}()
	return exited, nil
}

func (p *Process) stop(exited <-chan error) int {
	p.signal(syscall.SIGINT)

	select {
	case err := <-exited:
		return exitCode(err)
	case <-time.After(p.gracePeriod):
	}

	p.logger.Warn("Process ignored SIGINT, killing it", "id", p.id, "grace_period", p.gracePeriod)
	p.signal(syscall.SIGKILL)
	select {
	case <-exited:
	case <-time.After(p.killWait):
		p.logger.Error("Process did not exit after SIGKILL", "id", p.id)
	}
	return ExitKilled
}

// signal sends sig to the subprocess's process group.
func (p *Process) signal(sig syscall.Signal) {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}

	err := syscall.Kill(-cmd.Process.Pid, sig)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Warn("Failed to signal process", "id", p.id, "signal", sig.String(), "error", err)
	}
}

// exitCode maps the error from Wait to an exit status. A process ended by a
// signal reports 128 plus the signal number, like a shell does.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}

func (p *Process) logLines(r io.Reader, source string) {
	logger := p.outputLogger
	if logger == nil {
		logger = p.logger
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		level, msg := "info", scanner.Text()
		if p.parseLine != nil {
			level, msg = p.parseLine(msg)
		}
		logAt(logger, level)(msg, "source", source)
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading process output", "id", p.id, "source", source, "error", err)
		_, _ = io.Copy(io.Discard, r)
	}
}

func logAt(logger logging.Logger, level string) func(msg string, args ...any) {
	switch level {
	case "panic", "fatal", "error":
		return logger.Error
	case "warning", "warn":
		return logger.Warn
	case "verbose", "debug", "trace":
		return logger.Debug
	default:
		return logger.Info
	}
}
