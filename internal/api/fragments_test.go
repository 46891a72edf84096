package api

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestStatusFragmentIdle(t *testing.T) {
	_, api := newTestServer(t, newFakeController())

	resp := api.Get("/status")
	if resp.Code != 200 {
		t.Fatalf("status = %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := resp.Body.String()
	for _, want := range []string{"Start new Recording", "Sync Time", `hx-get="/start_recording"`, "2024-05-17 09:30:00"} {
		if !strings.Contains(body, want) {
			t.Errorf("fragment missing %q:\n%s", want, body)
		}
	}
}

func TestStartRecordingFragment(t *testing.T) {
	ctrl := newFakeController()
	_, api := newTestServer(t, ctrl)

	wall := time.Date(2024, 5, 17, 8, 10, 0, 0, time.UTC)
	resp := api.Get("/start_recording?timestamp=" + strconv.FormatInt(wall.UnixMilli(), 10) +
		"&name=lecture&schedule=08:00-12:00,%2013:00-17:30")
	if resp.Code != 200 {
		t.Fatalf("status = %d", resp.Code)
	}

	body := resp.Body.String()
	for _, want := range []string{"Currently recording", "Name: lecture", "Schedule: 08:00-12:00, 13:00-17:30", "lecture-2024-05-17T08:00:00", "Stop Recording"} {
		if !strings.Contains(body, want) {
			t.Errorf("fragment missing %q:\n%s", want, body)
		}
	}
	if got := ctrl.Status().Now; got != wall.UnixNano() {
		t.Errorf("clock = %d, want %d", got, wall.UnixNano())
	}
}

func TestStartRecordingFragmentMissingParams(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCalls string
	}{
		{"no timestamp", "?name=lecture&schedule=08:00-12:00", ""},
		{"no name", "?timestamp=1715936400000&schedule=08:00-12:00", "SetTime"},
		{"no schedule", "?timestamp=1715936400000&name=lecture", "SetTime"},
		{"empty name", "?timestamp=1715936400000&name=&schedule=08:00-12:00", "SetTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			_, api := newTestServer(t, ctrl)

			resp := api.Get("/start_recording" + tt.query)
			if resp.Code != 200 {
				t.Fatalf("status = %d", resp.Code)
			}
			if !strings.Contains(resp.Body.String(), "Start new Recording") {
				t.Errorf("schedule changed:\n%s", resp.Body.String())
			}
			if _, calls := ctrl.state(); strings.Join(calls, ",") != tt.wantCalls {
				t.Errorf("calls = %v, want %q", calls, tt.wantCalls)
			}
		})
	}
}

func TestStartRecordingFragmentInvalidTimestamp(t *testing.T) {
	ctrl := newFakeController()
	_, api := newTestServer(t, ctrl)

	resp := api.Get("/start_recording?timestamp=soon&name=lecture&schedule=08:00-12:00")
	body := resp.Body.String()
	if !strings.Contains(body, `class="error"`) || !strings.Contains(body, "Unix milliseconds") {
		t.Errorf("error not rendered:\n%s", body)
	}
	if _, calls := ctrl.state(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestStartRecordingFragmentParseError(t *testing.T) {
	ctrl := newFakeController()
	_, api := newTestServer(t, ctrl)

	resp := api.Get("/start_recording?timestamp=1715936400000&name=lecture&schedule=25:00-26:00")
	body := resp.Body.String()
	if !strings.Contains(body, `class="error"`) || !strings.Contains(body, "hour") {
		t.Errorf("parse error not rendered:\n%s", body)
	}
	// The form keeps what the operator typed.
	if !strings.Contains(body, `value="lecture"`) || !strings.Contains(body, `value="25:00-26:00"`) {
		t.Errorf("form not refilled:\n%s", body)
	}
	if !ctrl.Status().Schedule.Idle() {
		t.Error("schedule set despite parse error")
	}
}

func TestStartRecordingFragmentEscapesInput(t *testing.T) {
	ctrl := newFakeController()
	_, api := newTestServer(t, ctrl)

	resp := api.Get("/start_recording?timestamp=1715936400000&name=%3Cb%3Ex%3C/b%3E&schedule=08:00-12:00")
	if strings.Contains(resp.Body.String(), "<b>x</b>") {
		t.Errorf("name rendered unescaped:\n%s", resp.Body.String())
	}
}

func TestStopRecordingFragment(t *testing.T) {
	ctrl := newFakeController()
	if err := ctrl.sched.Set("08:00-12:00", "lecture"); err != nil {
		t.Fatal(err)
	}
	_, api := newTestServer(t, ctrl)

	resp := api.Get("/stop_recording")
	if !strings.Contains(resp.Body.String(), "Start new Recording") {
		t.Errorf("still recording:\n%s", resp.Body.String())
	}

	ctrl.failWith = errCamera
	resp = api.Get("/stop_recording")
	if !strings.Contains(resp.Body.String(), errCamera.Error()) {
		t.Errorf("hardware error not rendered:\n%s", resp.Body.String())
	}
}

func TestSetTimeFragment(t *testing.T) {
	ctrl := newFakeController()
	_, api := newTestServer(t, ctrl)

	before := ctrl.Status().Now
	api.Get("/set_time")
	if ctrl.Status().Now != before {
		t.Error("clock changed without a timestamp")
	}

	resp := api.Get("/set_time?timestamp=1715936400000")
	if !strings.Contains(resp.Body.String(), "2024-05-17 09:00:00") {
		t.Errorf("new clock not rendered:\n%s", resp.Body.String())
	}

	resp = api.Get("/set_time?timestamp=12%3A00")
	if !strings.Contains(resp.Body.String(), `class="error"`) {
		t.Errorf("parse error not rendered:\n%s", resp.Body.String())
	}
	if ctrl.Status().Now != time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC).UnixNano() {
		t.Error("invalid timestamp moved the clock")
	}
}
