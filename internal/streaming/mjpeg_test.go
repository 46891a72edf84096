package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestMJPEGWriterParts(t *testing.T) {
	var out bytes.Buffer
	mw := NewMJPEGWriter(&out)

	frames := [][]byte{[]byte("\xff\xd8first\xff\xd9"), []byte("\xff\xd8second\xff\xd9")}
	for _, f := range frames {
		if err := mw.WriteFrame(f); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.parts.Close(); err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(out.Bytes(), []byte("--FRAME\r\n")) {
		t.Errorf("stream should start with boundary, got %q", out.Bytes()[:20])
	}

	mediaType, params, err := mime.ParseMediaType(ContentType)
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("bad content type %q: %v", ContentType, err)
	}

	reader := multipart.NewReader(&out, params["boundary"])
	for i, want := range frames {
		part, err := reader.NextPart()
		if err != nil {
			t.Fatalf("part %d: %v", i, err)
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part %d Content-Type = %q", i, ct)
		}
		got, _ := io.ReadAll(part)
		if !bytes.Equal(got, want) {
			t.Errorf("part %d = %q, want %q", i, got, want)
		}
	}
}

func TestMJPEGWriterFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	mw := NewMJPEGWriter(rec)

	if err := mw.WriteFrame([]byte("jpeg")); err != nil {
		t.Fatal(err)
	}
	if !rec.Flushed {
		t.Error("expected response to be flushed after a frame")
	}
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("broken pipe")
	}
	w.after--
	return len(p), nil
}

func TestServeStopsOnWriteError(t *testing.T) {
	buf := NewFrameBuffer(time.Second)
	out := &failingWriter{}

	done := make(chan error, 1)
	go func() {
		done <- Serve(context.Background(), out, buf)
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(time.Second)
	for {
		select {
		case err := <-done:
			if err == nil || errors.Is(err, ErrFrameTimeout) {
				t.Errorf("Serve = %v, want write error", err)
			}
			return
		case <-ticker.C:
			buf.Write([]byte("jpeg"), 1)
		case <-timeout:
			t.Fatal("Serve did not return on write error")
		}
	}
}

// lockedBuffer collects writes from the serving goroutine. Flush marks the
// point where Serve has taken its starting sequence number.
type lockedBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	flushed bool
}

func (b *lockedBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushed = true
}

func (b *lockedBuffer) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushed
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Contains(b.buf.Bytes(), []byte(s))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeStreamsNewFrames(t *testing.T) {
	buf := NewFrameBuffer(time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, out, buf)
	}()

	waitFor(t, out.ready)
	buf.Write([]byte("frame-one"), 1)
	waitFor(t, func() bool { return out.contains("frame-one") })

	buf.Write([]byte("frame-two"), 2)
	waitFor(t, func() bool { return out.contains("frame-two") })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if !out.contains("Content-Length: 9") {
		t.Error("parts should carry Content-Length")
	}
}

func TestServeSkipsFrameWrittenBeforeViewer(t *testing.T) {
	buf := NewFrameBuffer(time.Second)
	buf.Write([]byte("left over from the last session"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, out, buf)
	}()

	waitFor(t, out.ready)
	time.Sleep(50 * time.Millisecond)
	if out.contains("left over") {
		t.Fatal("new viewer was sent a frame written before it connected")
	}

	buf.Write([]byte("fresh"), 2)
	waitFor(t, func() bool { return out.contains("fresh") })

	cancel()
	<-done
	if out.contains("left over") {
		t.Error("stale frame sent after a fresh one")
	}
}
