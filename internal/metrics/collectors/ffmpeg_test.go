package collectors

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/camrecorder/internal/metrics"
)

func skipOnMacOS(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "darwin" {
		t.Skip("Unix socket path too long on macOS")
	}
}

func startCollector(t *testing.T, encoder string) (*FFmpegCollector, net.Conn) {
	t.Helper()
	skipOnMacOS(t)
	metrics.DeleteEncoderMetrics(encoder)

	collector := NewFFmpegCollector(filepath.Join(t.TempDir(), encoder+".sock"), encoder)
	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = collector.Stop() })

	conn, err := net.Dial("unix", collector.SocketPath())
	if err != nil {
		t.Fatalf("socket should accept connections right after Start: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return collector, conn
}

func waitForFPS(t *testing.T, encoder string, want float64) *metrics.EncoderMetrics {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		m := metrics.GetEncoderMetrics(encoder)
		if m != nil && m.FPS == want {
			return m
		}
		if time.Now().After(deadline) {
			t.Fatalf("FPS never reached %v, metrics = %+v", want, m)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReadProgress(t *testing.T) {
	input := `frame=250
fps=24.97
bitrate=N/A
drop_frames=3
dup_frames=1
out_time_us=10000000
speed=1.25x
progress=continue
garbage line
  fps = 25.0
speed=N/A
drop_frames=oops
progress=end
frame=1
`
	var got []Progress
	if err := ReadProgress(strings.NewReader(input), func(p Progress) { got = append(got, p) }); err != nil {
		t.Fatal(err)
	}

	want := []Progress{
		{Frame: 250, FPS: 24.97, DroppedFrames: 3, DuplicateFrames: 1, Speed: 1.25, OutTime: 10 * time.Second},
		{FPS: 25, End: true},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestReadProgressError(t *testing.T) {
	err := ReadProgress(failingReader{}, func(Progress) { t.Error("unexpected report") })
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("err = %v", err)
	}
}

func TestFFmpegCollectorPublishes(t *testing.T) {
	_, conn := startCollector(t, "recording")

	if _, err := io.WriteString(conn, "fps=29.97\ndrop_frames=3\ndup_frames=1\nspeed=1.25x\nprogress=continue\n"); err != nil {
		t.Fatal(err)
	}
	m := waitForFPS(t, "recording", 29.97)
	if m.DroppedFrames != 3 || m.DuplicateFrames != 1 || m.Speed != 1.25 {
		t.Errorf("metrics = %+v", m)
	}

	if _, err := io.WriteString(conn, "fps=60\nprogress=continue\n"); err != nil {
		t.Fatal(err)
	}
	m = waitForFPS(t, "recording", 60)
	if m.DroppedFrames != 0 {
		t.Errorf("DroppedFrames = %v, each block stands alone", m.DroppedFrames)
	}
}

func TestFFmpegCollectorIgnoresEndBlock(t *testing.T) {
	_, conn := startCollector(t, "preview")

	if _, err := io.WriteString(conn, "fps=25\nprogress=continue\nfps=0\nprogress=end\n"); err != nil {
		t.Fatal(err)
	}
	waitForFPS(t, "preview", 25)
	time.Sleep(50 * time.Millisecond)
	if m := metrics.GetEncoderMetrics("preview"); m == nil || m.FPS != 25 {
		t.Errorf("end block overwrote metrics: %+v", m)
	}
}

func TestFFmpegCollectorStop(t *testing.T) {
	collector, conn := startCollector(t, "capture")
	if _, err := io.WriteString(conn, "fps=30\nprogress=continue\n"); err != nil {
		t.Fatal(err)
	}
	waitForFPS(t, "capture", 30)

	// The connection is still open; Stop must not wait for ffmpeg to close it.
	done := make(chan error, 1)
	go func() { done <- collector.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an open connection")
	}

	if m := metrics.GetEncoderMetrics("capture"); m != nil {
		t.Errorf("metrics kept after Stop: %+v", m)
	}
	if _, err := os.Stat(collector.SocketPath()); !os.IsNotExist(err) {
		t.Error("socket file kept after Stop")
	}
	if err := collector.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if err := collector.Start(t.Context()); err == nil {
		t.Error("Start after Stop should fail")
	}
}

func TestFFmpegCollectorReplacesStaleSocket(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "stale.sock")
	if err := os.WriteFile(socketPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	collector := NewFFmpegCollector(socketPath, "stale")
	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer collector.Stop()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
}

func TestFFmpegCollectorStartFailsOnBadPath(t *testing.T) {
	collector := NewFFmpegCollector(filepath.Join(t.TempDir(), "missing", "x.sock"), "preview")
	if err := collector.Start(t.Context()); err == nil {
		collector.Stop()
		t.Fatal("expected listen error for missing directory")
	}
}

func TestFFmpegCollectorStopWithoutStart(t *testing.T) {
	collector := NewFFmpegCollector(filepath.Join(t.TempDir(), "never.sock"), "never")
	if err := collector.Stop(); err != nil {
		t.Errorf("Stop = %v", err)
	}
}
