package led

import (
	"os"
	"strings"

	"github.com/smazurov/camrecorder/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// board maps a device tree model to its LED names under /sys/class/leds.
type board struct {
	model string
	leds  map[string]string
}

var boards = []board{
	{model: "Raspberry Pi", leds: map[string]string{"act": "ACT", "pwr": "PWR"}},
	{model: "NanoPC-T6", leds: map[string]string{"user": "usr_led", "system": "sys_led"}},
	{model: "Orange Pi", leds: map[string]string{"blue": "blue_led", "green": "green_led"}},
}

// New returns a controller for the detected board, or a no-op controller when
// the board has no known LEDs.
func New(logger logging.Logger) Controller {
	return newForModel(detectBoard(), sysfsLEDPath, logger)
}

func newForModel(model, root string, logger logging.Logger) Controller {
	for _, b := range boards {
		if strings.Contains(model, b.model) {
			logger.Info("Using sysfs LED controller", "board_model", model)
			return newSysfs(root, b.leds)
		}
	}
	logger.Info("No LED support detected", "board_model", model)
	return newNoop(logger)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated.
	return strings.TrimRight(string(data), "\x00")
}
