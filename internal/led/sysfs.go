package led

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const sysfsLEDPath = "/sys/class/leds"

// Blink timing for the timer trigger, in milliseconds.
const (
	blinkOn  = "500"
	blinkOff = "500"
)

// sysfs implements Controller using the Linux LED class interface.
type sysfs struct {
	root string
	leds map[string]string // LED type -> sysfs name
}

func newSysfs(root string, leds map[string]string) *sysfs {
	return &sysfs{root: root, leds: leds}
}

// Set writes the trigger and brightness of an LED. Blinking uses the timer
// trigger; everything else switches to manual control first.
func (s *sysfs) Set(ledType string, enabled bool, pattern string) error {
	name, ok := s.leds[ledType]
	if !ok {
		return fmt.Errorf("LED type %q not supported on this board", ledType)
	}

	dir := filepath.Join(s.root, name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("LED %q not found at %s: %w", ledType, dir, err)
	}

	if enabled && pattern == PatternBlink {
		if err := s.write(dir, "trigger", "timer"); err != nil {
			return err
		}
		if err := s.write(dir, "delay_on", blinkOn); err != nil {
			return err
		}
		return s.write(dir, "delay_off", blinkOff)
	}

	if pattern != "" || !enabled {
		if err := s.write(dir, "trigger", "none"); err != nil {
			return err
		}
	}
	brightness := "0"
	if enabled {
		brightness = "1"
	}
	return s.write(dir, "brightness", brightness)
}

func (s *sysfs) write(dir, attr, value string) error {
	if err := os.WriteFile(filepath.Join(dir, attr), []byte(value), 0o644); err != nil {
		return fmt.Errorf("set LED %s: %w", attr, err)
	}
	return nil
}

func (s *sysfs) Available() []string {
	types := make([]string, 0, len(s.leds))
	for ledType := range s.leds {
		types = append(types, ledType)
	}
	sort.Strings(types)
	return types
}
