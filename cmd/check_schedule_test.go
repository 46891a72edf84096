package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/camrecorder/internal/schedule"
)

func TestRunCheckSchedule(t *testing.T) {
	var out bytes.Buffer
	err := RunCheckSchedule(CheckScheduleOptions{
		Name:   "lecture",
		Ranges: "08:30-10:00",
		From:   time.Date(2024, 5, 17, 8, 0, 0, 0, time.UTC),
		Step:   30 * time.Minute,
		Count:  5,
	}, &out)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if lines[0] != `schedule "lecture": 08:30-10:00` {
		t.Errorf("header = %q", lines[0])
	}

	want := [][]string{
		{"2024-05-17 08:00:00", "off", "-"},
		{"2024-05-17 08:30:00", "on", "lecture-2024-05-17T08:30:00"},
		{"2024-05-17 09:00:00", "on", "lecture-2024-05-17T09:00:00"},
		{"2024-05-17 09:30:00", "on", "lecture-2024-05-17T09:00:00"},
		{"2024-05-17 10:00:00", "off", "-"},
	}
	for i, fields := range want {
		got := strings.Fields(lines[i+2])
		// DisplayString has a space between date and time.
		got = append([]string{got[0] + " " + got[1]}, got[2:]...)
		if strings.Join(got, "|") != strings.Join(fields, "|") {
			t.Errorf("row %d = %v, want %v", i, got, fields)
		}
	}
}

func TestRunCheckSchedulePreRoll(t *testing.T) {
	var out bytes.Buffer
	err := RunCheckSchedule(CheckScheduleOptions{
		Name:   "lab",
		Ranges: "13:00-14:00",
		From:   time.Date(2024, 5, 17, 12, 58, 0, 0, time.UTC),
		Step:   time.Minute,
		Count:  1,
	}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "2024-05-17 12:58:00  on") {
		t.Errorf("encoder not warmed up during pre-roll:\n%s", out.String())
	}
}

func TestRunCheckScheduleInvalid(t *testing.T) {
	err := RunCheckSchedule(CheckScheduleOptions{Name: "x", Ranges: "25:00-26:00", Step: time.Minute, Count: 1}, &bytes.Buffer{})
	var parseErr *schedule.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want *schedule.ParseError", err)
	}
}

func TestParseFrom(t *testing.T) {
	got, err := parseFrom("2024-05-17 07:50")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 5, 17, 7, 50, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("parseFrom = %v, want %v", got, want)
	}
	if _, err := parseFrom("tomorrow"); err == nil {
		t.Error("expected error")
	}
}
