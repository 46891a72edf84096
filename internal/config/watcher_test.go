package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camrecorder/internal/logging"
)

type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// startWatcher writes the initial file, starts a watcher with a short debounce
// and stops it when the test ends.
func startWatcher(t *testing.T, initial string, opts ...WatcherOption[testConfig]) (*Watcher[testConfig], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camrecorder.toml")
	if initial != "" {
		writeConfig(t, path, initial)
	}

	opts = append([]WatcherOption[testConfig]{WithDebounce[testConfig](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return w, path
}

func receive(t *testing.T, ch <-chan testConfig) testConfig {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
		return testConfig{}
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	received := make(chan testConfig, 4)
	w, path := startWatcher(t, "name = \"initial\"\nvalue = 1\n")
	w.OnReload(func(cfg testConfig) { received <- cfg })

	writeConfig(t, path, "name = \"updated\"\nvalue = 42\n")
	if cfg := receive(t, received); cfg.Name != "updated" || cfg.Value != 42 {
		t.Errorf("got %+v", cfg)
	}

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "value = 20\n")
	if cfg := receive(t, received); cfg.Value != 20 {
		t.Errorf("second reload got %+v, want the latest file", cfg)
	}
}

func TestWatcherSeesRenameOverFile(t *testing.T) {
	received := make(chan testConfig, 4)
	w, path := startWatcher(t, "value = 1\n")
	w.OnReload(func(cfg testConfig) { received <- cfg })

	// Editors often save by writing a temporary file and renaming it.
	tmp := path + ".swp"
	writeConfig(t, tmp, "value = 7\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	if cfg := receive(t, received); cfg.Value != 7 {
		t.Errorf("got %+v", cfg)
	}

	// And it keeps working afterwards.
	writeConfig(t, path, "value = 8\n")
	if cfg := receive(t, received); cfg.Value != 8 {
		t.Errorf("got %+v after rename", cfg)
	}
}

func TestWatcherFileCreatedLater(t *testing.T) {
	received := make(chan testConfig, 1)
	w, path := startWatcher(t, "")
	w.OnReload(func(cfg testConfig) { received <- cfg })

	writeConfig(t, path, "name = \"late\"\n")
	if cfg := receive(t, received); cfg.Name != "late" {
		t.Errorf("got %+v", cfg)
	}
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	var count atomic.Int32
	w, path := startWatcher(t, "value = 1\n")
	w.OnReload(func(testConfig) { count.Add(1) })

	writeConfig(t, filepath.Join(filepath.Dir(path), "streams.toml"), "value = 2\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("reloaded %d times for another file", got)
	}
}

func TestWatcherHandlersShareSnapshot(t *testing.T) {
	var mu sync.Mutex
	var got []testConfig

	w, path := startWatcher(t, "value = 1\n")
	for range 3 {
		w.OnReload(func(cfg testConfig) {
			mu.Lock()
			got = append(got, cfg)
			mu.Unlock()
		})
	}

	writeConfig(t, path, "name = \"new\"\nvalue = 2\n")
	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("%d handlers called, want 3", len(got))
	}
	for i, cfg := range got {
		if cfg.Name != "new" || cfg.Value != 2 {
			t.Errorf("handler %d got %+v", i, cfg)
		}
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	var first, second atomic.Int32
	w, path := startWatcher(t, "value = 1\n")
	w.OnReload(func(cfg testConfig) { first.Store(int32(cfg.Value)) })
	unsub := w.OnReload(func(cfg testConfig) { second.Store(int32(cfg.Value)) })

	writeConfig(t, path, "value = 10\n")
	time.Sleep(250 * time.Millisecond)
	unsub()
	writeConfig(t, path, "value = 20\n")
	time.Sleep(250 * time.Millisecond)

	if got := first.Load(); got != 20 {
		t.Errorf("first handler last saw %d, want 20", got)
	}
	if got := second.Load(); got != 10 {
		t.Errorf("removed handler last saw %d, want 10", got)
	}
}

func TestWatcherLoadError(t *testing.T) {
	errs := make(chan error, 1)
	received := make(chan testConfig, 1)
	w, path := startWatcher(t, "value = 1\n", WithErrorHandler[testConfig](func(err error) { errs <- err }))
	w.OnReload(func(cfg testConfig) { received <- cfg })

	writeConfig(t, path, "invalid toml [[[")

	select {
	case <-errs:
	case cfg := <-received:
		t.Fatalf("handler called with %+v for a broken file", cfg)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcherDebounce(t *testing.T) {
	var count, last atomic.Int32
	w, path := startWatcher(t, "value = 0\n", WithDebounce[testConfig](200*time.Millisecond))
	w.OnReload(func(cfg testConfig) {
		count.Add(1)
		last.Store(int32(cfg.Value))
	})

	for i := 1; i <= 5; i++ {
		writeConfig(t, path, fmt.Sprintf("value = %d\n", i))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("%d reloads, want 1", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("last value %d, want 5", got)
	}
}

func TestWatcherConcurrentSubscribers(t *testing.T) {
	w, path := startWatcher(t, "value = 0\n", WithDebounce[testConfig](10*time.Millisecond))

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func(testConfig) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}
	for i := range 10 {
		writeConfig(t, path, fmt.Sprintf("value = %d\n", i))
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camrecorder.toml")
	writeConfig(t, path, "value = 1\n")

	var count atomic.Int32
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](50*time.Millisecond))
	w.OnReload(func(testConfig) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	writeConfig(t, path, "value = 99\n")
	time.Sleep(200 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Errorf("%d reloads after Stop", got)
	}
}

func TestWatcherLoggingLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camrecorder.toml")
	writeConfig(t, path, "[logging]\nlevel = \"info\"\n")

	w := NewConfigWatcher(path, LoadLoggingConfigE, newTestLogger(), WithDebounce[logging.Config](50*time.Millisecond))
	received := make(chan logging.Config, 1)
	w.OnReload(func(cfg logging.Config) {
		select {
		case received <- cfg:
		default:
		}
	})
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeConfig(t, path, "[logging]\nlevel = \"debug\"\nrecorder = \"warn\"\n")

	select {
	case cfg := <-received:
		if cfg.Level != "debug" || cfg.Modules["recorder"] != "warn" {
			t.Errorf("reloaded config = %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for logging config reload")
	}
}
