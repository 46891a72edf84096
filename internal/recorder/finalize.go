package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/camrecorder/internal/clock"
	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/metrics"
	"github.com/smazurov/camrecorder/internal/process"
)

// DefaultMKVMergeCommand muxes the raw stream with its timestamp file.
// Placeholders are replaced with quoted paths.
const DefaultMKVMergeCommand = "mkvmerge -o {output} --timestamps 0:{pts} {raw}"

// ErrFinalizeFailed is returned by FinalizeSync when the muxing tool fails.
var ErrFinalizeFailed = errors.New("finalize failed")

// MKVMergeOptions configures an MKVMerge finalizer.
type MKVMergeOptions struct {
	Command       string // default DefaultMKVMergeCommand
	RemoveSources bool   // delete raw and timestamp files after success
	Clock         clock.Source
	Events        Publisher
	Logger        logging.Logger
}

// MKVMerge finalizes segments by running mkvmerge in the background.
type MKVMerge struct {
	opts   MKVMergeOptions
	logger logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMKVMerge creates a finalizer.
func NewMKVMerge(opts MKVMergeOptions) *MKVMerge {
	if opts.Command == "" {
		opts.Command = DefaultMKVMergeCommand
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("recorder")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MKVMerge{opts: opts, logger: logger, ctx: ctx, cancel: cancel}
}

// Command returns the command line used for files.
func (m *MKVMerge) Command(files SegmentFiles) string {
	return process.Expand(m.opts.Command, map[string]string{
		"output": files.Output,
		"pts":    files.PTS,
		"raw":    files.Raw,
	})
}

// Finalize starts muxing files and returns immediately.
func (m *MKVMerge) Finalize(files SegmentFiles) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.run(m.ctx, files)
	}()
}

// FinalizeSync muxes files and waits for the result.
func (m *MKVMerge) FinalizeSync(ctx context.Context, files SegmentFiles) error {
	return m.run(ctx, files)
}

// Wait blocks until all background jobs are done. When ctx expires first the
// remaining jobs are interrupted.
func (m *MKVMerge) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("Interrupting running finalize jobs")
		m.cancel()
		<-done
		return ctx.Err()
	}
}

func (m *MKVMerge) run(ctx context.Context, files SegmentFiles) error {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(files.Output), 0o755); err != nil {
		m.logger.Error("Failed to create output directory", "segment", files.ID, "error", err)
		m.report(files, -1, false, time.Since(start))
		return fmt.Errorf("create output directory: %w", err)
	}

	command := m.Command(files)
	m.logger.Info("Finalizing segment", "segment", files.ID, "command", command)

	proc := process.NewProcess("mkvmerge-"+files.ID, command, m.logger)
	proc.SetLogParser(m.logger, ParseMKVMergeLine)
	exitCode := proc.Run(ctx)

	// mkvmerge exits with 1 when it only emitted warnings.
	success := exitCode == 0 || exitCode == 1
	m.report(files, exitCode, success, time.Since(start))
	if !success {
		return fmt.Errorf("%w: %s: mkvmerge exited with code %d", ErrFinalizeFailed, files.ID, exitCode)
	}

	if m.opts.RemoveSources {
		if err := files.RemoveSources(); err != nil {
			m.logger.Warn("Failed to remove segment sources", "segment", files.ID, "error", err)
		}
	}
	return nil
}

func (m *MKVMerge) report(files SegmentFiles, exitCode int, success bool, took time.Duration) {
	metrics.SegmentFinalized(success, took)
	if success {
		m.logger.Info("Segment finalized", "segment", files.ID, "output", files.Output, "exit_code", exitCode, "took", took)
	} else {
		m.logger.Error("Segment finalize failed", "segment", files.ID, "exit_code", exitCode)
	}

	if m.opts.Events == nil {
		return
	}
	var now int64
	if m.opts.Clock != nil {
		now = m.opts.Clock.Now()
	} else {
		now = time.Now().UnixNano()
	}
	m.opts.Events.Publish(events.SegmentFinalizedEvent{
		SegmentID: files.ID,
		Output:    files.Output,
		ExitCode:  exitCode,
		Success:   success,
		Timestamp: events.Stamp(now),
	})
}

// ParseMKVMergeLine maps mkvmerge output to a log level.
func ParseMKVMergeLine(line string) (level, msg string) {
	switch {
	case strings.HasPrefix(line, "Error:"):
		return "error", strings.TrimSpace(strings.TrimPrefix(line, "Error:"))
	case strings.HasPrefix(line, "Warning:"):
		return "warning", strings.TrimSpace(strings.TrimPrefix(line, "Warning:"))
	case strings.HasPrefix(line, "Progress:"), strings.HasPrefix(line, "#GUI#"):
		return "debug", line
	default:
		return "info", line
	}
}
