package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// File name suffixes of a segment.
const (
	RawExt       = ".h264"
	PTSSuffix    = "-timestamp.txt"
	ContainerExt = ".mkv"
)

// SegmentFiles names the files belonging to one segment.
type SegmentFiles struct {
	ID     string
	Raw    string // <work_dir>/<id>.h264
	PTS    string // <work_dir>/<id>-timestamp.txt
	Output string // <output_dir>/<id>.mkv
}

// NewSegmentFiles derives the file layout of segment id.
func NewSegmentFiles(workDir, outputDir, id string) SegmentFiles {
	base := SanitizeID(id)
	return SegmentFiles{
		ID:     id,
		Raw:    filepath.Join(workDir, base+RawExt),
		PTS:    filepath.Join(workDir, base+PTSSuffix),
		Output: filepath.Join(outputDir, base+ContainerExt),
	}
}

// SanitizeID turns a segment id into a safe file name. Path separators and
// control characters become '_' and leading dots are dropped.
func SanitizeID(id string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, id)
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "segment"
	}
	return clean
}

// RemoveSources deletes the raw and timestamp files. Missing files are ignored.
func (f SegmentFiles) RemoveSources() error {
	var errs []error
	for _, path := range []string{f.Raw, f.PTS} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
