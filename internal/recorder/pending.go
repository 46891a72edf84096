package recorder

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Pending lists segments left in workDir, e.g. after a crash. Only raw files
// with a matching timestamp file are returned, oldest id first.
func Pending(workDir, outputDir string) ([]SegmentFiles, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read work directory: %w", err)
	}

	var pending []SegmentFiles
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, RawExt) {
			continue
		}
		id := strings.TrimSuffix(name, RawExt)
		files := NewSegmentFiles(workDir, outputDir, id)
		if _, err := os.Stat(files.PTS); err != nil {
			continue
		}
		pending = append(pending, files)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ID < pending[j].ID
	})
	return pending, nil
}
