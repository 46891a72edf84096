package api

import (
	"bytes"
	"context"
	"html/template"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camrecorder/internal/api/models"
)

var statusTemplate = template.Must(template.New("status").Parse(`
{{- if .Error}}<p class="error">{{.Error}}</p>{{end -}}
{{- if not .Status.Schedule.Idle -}}
<h1>Currently recording</h1>
Name: {{.Status.Schedule.Name}}<br>
Schedule: {{.Status.Schedule.Ranges}}<br>
{{- if .Status.Schedule.Segment}}
Segment: {{.Status.Schedule.Segment}}<br>
{{- end}}
Clock: {{.Status.Clock}}<br>
<button hx-get="/stop_recording" hx-target="#status">Stop Recording</button>
{{- else -}}
<h1>Start new Recording</h1>
Clock: {{.Status.Clock}}<br>
<button hx-get="/set_time" hx-target="#status" hx-vals='js:{timestamp: currentTimestamp()}'>Sync Time</button>
<form hx-get="/start_recording" hx-target="#status" hx-vals='js:{timestamp: currentTimestamp()}'>
<div><label>Recording Name:</label><input type="text" name="name" value="{{.Name}}"></div>
<div><label>Recording Schedule:</label><input type="text" name="schedule" value="{{.Schedule}}" placeholder="08:00-12:00, 13:00-17:30"></div>
<button>Start Recording</button>
</form>
{{- end}}
`))

type fragmentOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type timeQuery struct {
	Timestamp string `query:"timestamp" doc:"Browser wall clock in Unix milliseconds"`
}

type startRecordingQuery struct {
	Timestamp string `query:"timestamp" doc:"Browser wall clock in Unix milliseconds"`
	Name      string `query:"name" doc:"Recording name"`
	Schedule  string `query:"schedule" doc:"Comma separated time ranges"`
}

// fragment renders the status block. name and ranges refill the start form.
func (s *Server) fragment(name, ranges string, cause error) (*fragmentOutput, error) {
	data := struct {
		Status   models.StatusData
		Name     string
		Schedule string
		Error    string
	}{
		Status:   statusData(s.options.Controller.Status()),
		Name:     name,
		Schedule: ranges,
	}
	if cause != nil {
		data.Error = cause.Error()
	}

	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, data); err != nil {
		return nil, huma.Error500InternalServerError("Failed to render status", err)
	}
	return &fragmentOutput{ContentType: "text/html; charset=utf-8", Body: buf.Bytes()}, nil
}

// registerFragmentRoutes registers the htmx endpoints used by the control page.
// Each one answers with the status fragment. Missing parameters leave the
// state untouched and invalid ones are reported inside the fragment.
func (s *Server) registerFragmentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "status-fragment",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Status fragment",
		Tags:        []string{"htmx"},
		Hidden:      true,
	}, func(_ context.Context, _ *struct{}) (*fragmentOutput, error) {
		return s.fragment("", "", nil)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-recording-fragment",
		Method:      http.MethodGet,
		Path:        "/start_recording",
		Summary:     "Start recording",
		Tags:        []string{"htmx"},
		Hidden:      true,
	}, func(ctx context.Context, input *startRecordingQuery) (*fragmentOutput, error) {
		if input.Timestamp == "" {
			return s.fragment(input.Name, input.Schedule, nil)
		}
		wall, err := parseMillis(input.Timestamp)
		if err != nil {
			s.logger.Warn("Failed to parse timestamp", "timestamp", input.Timestamp, "error", err)
			return s.fragment(input.Name, input.Schedule, err)
		}
		if err := s.options.Controller.SetTime(ctx, wall); err != nil {
			s.logger.Error("Failed to set clock", "error", err)
			return s.fragment(input.Name, input.Schedule, err)
		}
		if input.Name == "" || input.Schedule == "" {
			return s.fragment(input.Name, input.Schedule, nil)
		}
		if err := s.options.Controller.Record(ctx, input.Name, input.Schedule); err != nil {
			s.logger.Warn("Failed to start recording", "name", input.Name, "schedule", input.Schedule, "error", err)
			return s.fragment(input.Name, input.Schedule, err)
		}
		return s.fragment("", "", nil)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-recording-fragment",
		Method:      http.MethodGet,
		Path:        "/stop_recording",
		Summary:     "Stop recording",
		Tags:        []string{"htmx"},
		Hidden:      true,
	}, func(ctx context.Context, _ *struct{}) (*fragmentOutput, error) {
		s.logger.Info("Stop recording requested")
		if err := s.options.Controller.StopRecording(ctx); err != nil {
			s.logger.Error("Failed to stop recording", "error", err)
			return s.fragment("", "", err)
		}
		return s.fragment("", "", nil)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-time-fragment",
		Method:      http.MethodGet,
		Path:        "/set_time",
		Summary:     "Sync clock",
		Tags:        []string{"htmx"},
		Hidden:      true,
	}, func(ctx context.Context, input *timeQuery) (*fragmentOutput, error) {
		if input.Timestamp == "" {
			return s.fragment("", "", nil)
		}
		wall, err := parseMillis(input.Timestamp)
		if err != nil {
			s.logger.Warn("Failed to parse timestamp", "timestamp", input.Timestamp, "error", err)
			return s.fragment("", "", err)
		}
		if err := s.options.Controller.SetTime(ctx, wall); err != nil {
			s.logger.Error("Failed to set clock", "error", err)
			return s.fragment("", "", err)
		}
		return s.fragment("", "", nil)
	})
}
