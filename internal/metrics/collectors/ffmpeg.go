// Package collectors feeds encoder metrics from ffmpeg progress reports.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/metrics"
)

// Progress is one block of ffmpeg -progress output. ffmpeg writes key=value
// lines and closes every block with progress=continue or progress=end.
type Progress struct {
	Frame           int64
	FPS             float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64 // "1.25x" -> 1.25, 0 when ffmpeg reports N/A
	OutTime         time.Duration
	End             bool
}

// ReadProgress calls report for every complete block read from r until r is
// exhausted. Malformed values are left at zero.
func ReadProgress(r io.Reader, report func(Progress)) error {
	scanner := bufio.NewScanner(r)
	var p Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "frame":
			p.Frame, _ = strconv.ParseInt(value, 10, 64)
		case "fps":
			p.FPS, _ = strconv.ParseFloat(value, 64)
		case "drop_frames":
			p.DroppedFrames, _ = strconv.ParseFloat(value, 64)
		case "dup_frames":
			p.DuplicateFrames, _ = strconv.ParseFloat(value, 64)
		case "speed":
			p.Speed, _ = strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, "x")), 64)
		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil {
				p.OutTime = time.Duration(us) * time.Microsecond
			}
		case "progress":
			p.End = value == "end"
			report(p)
			p = Progress{}
		}
	}
	return scanner.Err()
}

// FFmpegCollector listens on a Unix socket for ffmpeg progress reports and
// publishes them as encoder metrics. ffmpeg is pointed at it with
// "-progress unix://<socket>".
type FFmpegCollector struct {
	logger     logging.Logger
	socketPath string
	encoder    string

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	stopped  bool
	wg       sync.WaitGroup
}

// NewFFmpegCollector creates a collector for the named encoder.
func NewFFmpegCollector(socketPath, encoder string) *FFmpegCollector {
	return &FFmpegCollector{
		logger:     logging.GetLogger("metrics").With("component", "ffmpeg_collector", "encoder", encoder),
		socketPath: socketPath,
		encoder:    encoder,
		conns:      make(map[net.Conn]struct{}),
	}
}

// SocketPath returns the Unix socket ffmpeg should report progress to.
func (f *FFmpegCollector) SocketPath() string {
	return f.socketPath
}

// Start creates the socket and begins collecting. The socket exists when
// Start returns, so ffmpeg can be launched right after.
func (f *FFmpegCollector) Start(ctx context.Context) error {
	if err := os.Remove(f.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("Failed to remove stale socket", "socket", f.socketPath, "error", err)
	}
	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", f.socketPath, err)
	}

	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		listener.Close()
		return errors.New("collector stopped")
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.listener = listener
	f.mu.Unlock()

	f.logger.Debug("Collecting progress", "socket", f.socketPath)
	f.wg.Add(2)
	go f.accept(listener)
	go func() {
		defer f.wg.Done()
		<-ctx.Done()
		f.closeAll()
	}()
	return nil
}

// Stop closes the socket, waits for open connections to finish and removes
// the encoder's metrics. It can be called more than once.
func (f *FFmpegCollector) Stop() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	} else {
		f.closeAll()
	}
	f.wg.Wait()

	if err := os.Remove(f.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("Failed to remove socket", "socket", f.socketPath, "error", err)
	}
	metrics.DeleteEncoderMetrics(f.encoder)
	return nil
}

func (f *FFmpegCollector) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener != nil {
		f.listener.Close()
		f.listener = nil
	}
	for conn := range f.conns {
		conn.Close()
	}
}

func (f *FFmpegCollector) accept(listener net.Listener) {
	defer f.wg.Done()
	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			f.logger.Warn("Error accepting progress connection", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		f.mu.Lock()
		if f.listener == nil {
			f.mu.Unlock()
			conn.Close()
			return
		}
		f.conns[conn] = struct{}{}
		f.wg.Add(1)
		f.mu.Unlock()

		go f.serve(conn)
	}
}

func (f *FFmpegCollector) serve(conn net.Conn) {
	defer f.wg.Done()
	defer func() {
		f.mu.Lock()
		delete(f.conns, conn)
		f.mu.Unlock()
		conn.Close()
	}()

	err := ReadProgress(conn, f.publish)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		f.logger.Debug("Progress connection ended", "error", err)
	}
}

func (f *FFmpegCollector) publish(p Progress) {
	if p.End {
		f.logger.Debug("Encoder finished", "frames", p.Frame, "out_time", p.OutTime)
		return
	}
	metrics.SetEncoderFPS(f.encoder, p.FPS)
	metrics.SetEncoderDroppedFrames(f.encoder, p.DroppedFrames)
	metrics.SetEncoderDuplicateFrames(f.encoder, p.DuplicateFrames)
	metrics.SetEncoderSpeed(f.encoder, p.Speed)
}
