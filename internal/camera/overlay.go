package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// writeOverlay replaces the overlay file atomically so the drawtext filter
// never reads a partial line.
func writeOverlay(path, text string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".overlay-*")
	if err != nil {
		return fmt.Errorf("create overlay: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write overlay: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close overlay: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace overlay: %w", err)
	}
	return nil
}

// runOverlay rewrites the overlay with text() every interval until ctx ends.
func (c *ProcessCamera) runOverlay(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failed := false
	for {
		if err := writeOverlay(c.opts.OverlayPath, c.opts.Clock.String()); err != nil {
			if !failed {
				c.logger.Warn("Failed to update overlay", "path", c.opts.OverlayPath, "error", err)
			}
			failed = true
		} else {
			failed = false
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
