package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PTSHeader starts every timestamp file.
const PTSHeader = "# timestamp format v2"

// FileOutput writes frame data to a file and, optionally, one pts line per
// timestamped frame to a second file. The pts header is written with the first line.
type FileOutput struct {
	path    string
	ptsPath string

	file    *os.File
	w       *bufio.Writer
	ptsFile *os.File
	pts     *bufio.Writer

	headerDone bool
	frames     int64
	bytes      int64
}

// NewFileOutput creates an output for path. ptsPath may be empty.
func NewFileOutput(path, ptsPath string) *FileOutput {
	return &FileOutput{path: path, ptsPath: ptsPath}
}

// Open creates both files and their parent directories.
func (o *FileOutput) Open() error {
	if o.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", o.path, err)
	}
	file, err := os.Create(o.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", o.path, err)
	}

	if o.ptsPath != "" {
		if err := os.MkdirAll(filepath.Dir(o.ptsPath), 0o755); err != nil {
			file.Close()
			return fmt.Errorf("create directory for %s: %w", o.ptsPath, err)
		}
		ptsFile, err := os.Create(o.ptsPath)
		if err != nil {
			file.Close()
			return fmt.Errorf("create %s: %w", o.ptsPath, err)
		}
		o.ptsFile = ptsFile
		o.pts = bufio.NewWriter(ptsFile)
	}

	o.file = file
	o.w = bufio.NewWriterSize(file, 256*1024)
	return nil
}

// WriteFrame appends frame data and its pts line.
func (o *FileOutput) WriteFrame(frame Frame) error {
	if o.file == nil {
		return errors.New("file output not open")
	}

	n, err := o.w.Write(frame.Data)
	o.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", o.path, err)
	}
	o.frames++

	if o.pts == nil || !frame.HasTimestamp {
		return nil
	}
	if !o.headerDone {
		if _, err := io.WriteString(o.pts, PTSHeader+"\n"); err != nil {
			return fmt.Errorf("write %s: %w", o.ptsPath, err)
		}
		o.headerDone = true
	}
	if _, err := io.WriteString(o.pts, formatPTS(frame.Timestamp)+"\n"); err != nil {
		return fmt.Errorf("write %s: %w", o.ptsPath, err)
	}
	return nil
}

// Close flushes and closes both files. Safe to call more than once.
func (o *FileOutput) Close() error {
	if o.file == nil {
		return nil
	}

	var errs []error
	if o.pts != nil {
		// An empty timestamp file still needs the header for mkvmerge.
		if !o.headerDone {
			_, err := io.WriteString(o.pts, PTSHeader+"\n")
			errs = append(errs, err)
		}
		errs = append(errs, o.pts.Flush(), o.ptsFile.Close())
	}
	errs = append(errs, o.w.Flush(), o.file.Close())

	o.file, o.w, o.ptsFile, o.pts = nil, nil, nil, nil
	return errors.Join(errs...)
}

// Frames returns the number of frames written.
func (o *FileOutput) Frames() int64 {
	return o.frames
}

// Bytes returns the number of data bytes written.
func (o *FileOutput) Bytes() int64 {
	return o.bytes
}
