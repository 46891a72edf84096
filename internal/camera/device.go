package camera

import (
	"fmt"
	"os"
	"strings"
)

// ResolveDevice turns a stable V4L2 id into a device path. Paths are returned
// unchanged; "usb-..." and "platform-..." ids are looked up under /dev/v4l.
func ResolveDevice(id string) (string, error) {
	return resolveDevice("/dev/v4l", id)
}

func resolveDevice(root, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty camera device")
	}
	if strings.HasPrefix(id, "/") {
		return id, nil
	}

	var dirs []string
	switch {
	case strings.HasPrefix(id, "usb-"):
		dirs = []string{"by-id", "by-path"}
	case strings.HasPrefix(id, "platform-"), strings.HasPrefix(id, "pci-"):
		dirs = []string{"by-path"}
	default:
		return "", fmt.Errorf("unrecognised camera device %q", id)
	}

	for _, dir := range dirs {
		path := root + "/" + dir + "/" + id
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no device link found for %q", id)
}
