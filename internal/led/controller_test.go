package led

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNoopController(t *testing.T) {
	ctrl := newNoop(testLogger())

	if err := ctrl.Set("act", true, PatternSolid); err != nil {
		t.Errorf("Set() returned error: %v", err)
	}
	if types := ctrl.Available(); len(types) != 0 {
		t.Errorf("Available() = %v, want empty slice", types)
	}
}

// fakeLEDDir creates /sys/class/leds/<name> with writable attributes.
func fakeLEDDir(t *testing.T, name string) (root string) {
	t.Helper()
	root = t.TempDir()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, attr := range []string{"trigger", "brightness", "delay_on", "delay_off"} {
		if err := os.WriteFile(filepath.Join(dir, attr), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readAttr(t *testing.T, root, name, attr string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, name, attr))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSysfsController_Set(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		pattern     string
		wantTrigger string
		wantBright  string
	}{
		{name: "solid", enabled: true, pattern: PatternSolid, wantTrigger: "none", wantBright: "1"},
		{name: "blink", enabled: true, pattern: PatternBlink, wantTrigger: "timer", wantBright: ""},
		{name: "off", enabled: false, wantTrigger: "none", wantBright: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := fakeLEDDir(t, "ACT")
			ctrl := newSysfs(root, map[string]string{"act": "ACT"})

			if err := ctrl.Set("act", tt.enabled, tt.pattern); err != nil {
				t.Fatalf("Set() error: %v", err)
			}
			if got := readAttr(t, root, "ACT", "trigger"); got != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", got, tt.wantTrigger)
			}
			if got := readAttr(t, root, "ACT", "brightness"); got != tt.wantBright {
				t.Errorf("brightness = %q, want %q", got, tt.wantBright)
			}
			if tt.pattern == PatternBlink && readAttr(t, root, "ACT", "delay_on") != blinkOn {
				t.Error("delay_on not written")
			}
		})
	}
}

func TestSysfsController_Available(t *testing.T) {
	ctrl := newSysfs(t.TempDir(), map[string]string{"pwr": "PWR", "act": "ACT"})
	got := ctrl.Available()
	if len(got) != 2 || got[0] != "act" || got[1] != "pwr" {
		t.Errorf("Available() = %v, want [act pwr]", got)
	}
}

func TestSysfsController_Set_InvalidType(t *testing.T) {
	ctrl := newSysfs(t.TempDir(), map[string]string{"act": "ACT"})

	if err := ctrl.Set("nonexistent", true, ""); err == nil {
		t.Error("Set() with invalid LED type should return error")
	}
	if err := ctrl.Set("act", true, ""); err == nil {
		t.Error("Set() should fail when the LED directory is missing")
	}
}
