package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/recorder"
)

func leaveSegment(t *testing.T, work, out, id, data string) recorder.SegmentFiles {
	t.Helper()
	files := recorder.NewSegmentFiles(work, out, id)
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(files.Raw, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(files.PTS, []byte("# timestamp format v2\n0.000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return files
}

func TestRunFinalize(t *testing.T) {
	dir := t.TempDir()
	work, out := filepath.Join(dir, "tmp"), filepath.Join(dir, "recordings")
	files := leaveSegment(t, work, out, "lecture-2024-05-17T09:00:00", "frames")

	var buf bytes.Buffer
	err := RunFinalize(context.Background(), FinalizeOptions{
		WorkDir:   work,
		OutputDir: out,
		Command:   "cp {raw} {output}",
	}, &buf, logging.GetLogger("recorder"))
	if err != nil {
		t.Fatalf("RunFinalize: %v\n%s", err, buf.String())
	}

	data, err := os.ReadFile(files.Output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "frames" {
		t.Errorf("output = %q", data)
	}
	if _, err := os.Stat(files.Raw); !os.IsNotExist(err) {
		t.Error("raw file not removed")
	}
	if !strings.HasPrefix(buf.String(), "ok     lecture-2024-05-17T09:00:00") {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestRunFinalizeKeepAndDryRun(t *testing.T) {
	dir := t.TempDir()
	work, out := filepath.Join(dir, "tmp"), filepath.Join(dir, "recordings")
	files := leaveSegment(t, work, out, "lab-2024-05-17T13:00:00", "x")

	var buf bytes.Buffer
	err := RunFinalize(context.Background(), FinalizeOptions{
		WorkDir:   work,
		OutputDir: out,
		Command:   recorder.DefaultMKVMergeCommand,
		DryRun:    true,
	}, &buf, logging.GetLogger("recorder"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "mkvmerge -o ") || !strings.Contains(buf.String(), files.Raw) {
		t.Errorf("dry run printed %q", buf.String())
	}
	if _, err := os.Stat(files.Output); !os.IsNotExist(err) {
		t.Error("dry run wrote output")
	}

	buf.Reset()
	err = RunFinalize(context.Background(), FinalizeOptions{
		WorkDir:   work,
		OutputDir: out,
		Command:   "cp {raw} {output}",
		Keep:      true,
	}, &buf, logging.GetLogger("recorder"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(files.Raw); err != nil {
		t.Errorf("raw file removed despite --keep: %v", err)
	}
}

func TestRunFinalizeFailure(t *testing.T) {
	dir := t.TempDir()
	work := filepath.Join(dir, "tmp")
	leaveSegment(t, work, dir, "a-2024-05-17T09:00:00", "x")
	leaveSegment(t, work, dir, "b-2024-05-17T10:00:00", "y")

	var buf bytes.Buffer
	err := RunFinalize(context.Background(), FinalizeOptions{
		WorkDir:   work,
		OutputDir: dir,
		Command:   "sh -c 'exit 2'",
	}, &buf, logging.GetLogger("recorder"))
	if !errors.Is(err, recorder.ErrFinalizeFailed) {
		t.Fatalf("err = %v, want ErrFinalizeFailed", err)
	}
	if !strings.Contains(err.Error(), "2 of 2 segments") {
		t.Errorf("err = %v", err)
	}
	if strings.Count(buf.String(), "FAILED") != 2 {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestRunFinalizeNothingPending(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	err := RunFinalize(context.Background(), FinalizeOptions{WorkDir: dir, OutputDir: dir}, &buf, logging.GetLogger("recorder"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no pending segments") {
		t.Errorf("output = %q", buf.String())
	}
}
