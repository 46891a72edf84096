package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camrecorder/internal/api/models"
	"github.com/smazurov/camrecorder/internal/clock"
	"github.com/smazurov/camrecorder/internal/control"
	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/schedule"
)

// ErrInvalidTimestamp is returned for a timestamp that is not Unix milliseconds.
var ErrInvalidTimestamp = errors.New("timestamp must be Unix milliseconds")

// parseMillis converts a Unix millisecond query value to clock nanoseconds.
func parseMillis(value string) (int64, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	const limit = math.MaxInt64 / int64(time.Millisecond)
	if ms > limit || ms < -limit {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidTimestamp, value)
	}
	return ms * int64(time.Millisecond), nil
}

func statusData(st control.Status) models.StatusData {
	data := models.StatusData{
		Viewers:   st.Viewers,
		Recording: st.Recording,
		Schedule: models.ScheduleData{
			Name:   st.Schedule.Name,
			Ranges: st.Schedule.RangesString(),
			Idle:   st.Schedule.Idle(),
		},
		Now:   events.Stamp(st.Now),
		Clock: clock.DisplayString(st.Now),
	}
	if id, ok := st.Schedule.ShouldRecord(st.Now); ok {
		data.Schedule.Segment = id
	}
	return data
}

// controlError maps controller errors to HTTP errors. Schedule and timestamp
// problems are the caller's fault, everything else is a hardware failure.
func controlError(msg string, err error) error {
	var parseErr *schedule.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, ErrInvalidTimestamp) {
		return huma.Error400BadRequest(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}

func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Viewers, recording state, schedule and node clock",
		Tags:        []string{"recording"},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: statusData(s.options.Controller.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-schedule",
		Method:      http.MethodPut,
		Path:        "/api/schedule",
		Summary:     "Set schedule",
		Description: "Replace the recording schedule. The recording encoder is evaluated immediately.",
		Tags:        []string{"recording"},
		Errors:      []int{400, 500},
	}, func(ctx context.Context, input *models.ScheduleRequest) (*models.StatusResponse, error) {
		if input.Body.Timestamp != nil {
			if err := s.options.Controller.SetTime(ctx, *input.Body.Timestamp*int64(time.Millisecond)); err != nil {
				return nil, controlError("Failed to set clock", err)
			}
		}
		if err := s.options.Controller.Record(ctx, input.Body.Name, input.Body.Ranges); err != nil {
			s.logger.Warn("Failed to set schedule", "name", input.Body.Name, "ranges", input.Body.Ranges, "error", err)
			return nil, controlError("Failed to set schedule", err)
		}
		return &models.StatusResponse{Body: statusData(s.options.Controller.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-schedule",
		Method:      http.MethodDelete,
		Path:        "/api/schedule",
		Summary:     "Stop recording",
		Description: "Clear the schedule and stop the recording encoder",
		Tags:        []string{"recording"},
		Errors:      []int{500},
	}, func(ctx context.Context, _ *struct{}) (*models.StatusResponse, error) {
		if err := s.options.Controller.StopRecording(ctx); err != nil {
			return nil, controlError("Failed to stop recording", err)
		}
		return &models.StatusResponse{Body: statusData(s.options.Controller.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-time",
		Method:      http.MethodPut,
		Path:        "/api/time",
		Summary:     "Set clock",
		Description: "Set the node clock from a wall clock in Unix milliseconds",
		Tags:        []string{"recording"},
		Errors:      []int{500},
	}, func(ctx context.Context, input *models.TimeRequest) (*models.StatusResponse, error) {
		if err := s.options.Controller.SetTime(ctx, input.Body.Timestamp*int64(time.Millisecond)); err != nil {
			return nil, controlError("Failed to set clock", err)
		}
		return &models.StatusResponse{Body: statusData(s.options.Controller.Status())}, nil
	})
}
