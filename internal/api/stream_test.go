package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/streaming"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPreviewStreamHoldsViewer(t *testing.T) {
	ctrl := newFakeController()
	frames := streaming.NewFrameBuffer(5 * time.Second)
	server := NewServer(&Options{Controller: ctrl, Frames: frames, EventBus: events.New()})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	// Left in the slot by a preview encoder that has since stopped.
	frames.Write([]byte("\xff\xd8stale\xff\xd9"), 1)

	ctx, cancel := context.WithCancel(t.Context())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream.mjpg", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != streaming.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	nextLine := func(want string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream ended before %q", want)
				}
				if strings.Contains(line, "stale") {
					t.Fatal("viewer was sent a frame written before it connected")
				}
				if strings.Contains(line, want) {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	frames.Write([]byte("\xff\xd8first\xff\xd9"), 2)
	nextLine("--FRAME")
	nextLine("Content-Type: image/jpeg")
	nextLine("first")

	if viewers, _ := ctrl.state(); viewers != 1 {
		t.Errorf("viewers = %d while streaming, want 1", viewers)
	}

	frames.Write([]byte("\xff\xd8second\xff\xd9"), 3)
	nextLine("second")

	cancel()
	waitFor(t, "viewer release", func() bool {
		viewers, _ := ctrl.state()
		return viewers == 0
	})
	if _, calls := ctrl.state(); strings.Join(calls, ",") != "AddViewer,RemoveViewer" {
		t.Errorf("calls = %v", calls)
	}
}

func TestPreviewStreamStartFailure(t *testing.T) {
	ctrl := newFakeController()
	ctrl.failWith = errCamera
	_, api := newTestServer(t, ctrl)

	resp := api.Get("/stream.mjpg")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.Code)
	}
	if _, calls := ctrl.state(); strings.Join(calls, ",") != "AddViewer" {
		t.Errorf("calls = %v, want a single AddViewer", calls)
	}
}
