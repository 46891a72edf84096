// Package models holds the request and response bodies of the HTTP API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// ScheduleData describes the schedule currently held by the node.
type ScheduleData struct {
	Name    string `json:"name,omitempty" example:"lecture" doc:"Recording name"`
	Ranges  string `json:"ranges,omitempty" example:"08:00-12:00, 13:00-17:30" doc:"Daily time ranges"`
	Idle    bool   `json:"idle" example:"false" doc:"True when no schedule is set"`
	Segment string `json:"segment,omitempty" example:"lecture-2024-05-17T09:00:00" doc:"Segment that would be written now"`
}

// StatusData is the controller state as seen by the API.
type StatusData struct {
	Viewers   int          `json:"viewers" example:"1" doc:"Connected preview viewers"`
	Recording bool         `json:"recording" example:"true" doc:"Whether the recording encoder runs"`
	Schedule  ScheduleData `json:"schedule" doc:"Current schedule"`
	Now       string       `json:"now" example:"2024-05-17T09:12:44Z" doc:"Node clock"`
	Clock     string       `json:"clock" example:"2024-05-17 09:12:44" doc:"Node clock as drawn on the video"`
}

type StatusResponse struct {
	Body StatusData
}

// ScheduleRequest replaces the schedule.
type ScheduleRequest struct {
	Body struct {
		Name      string `json:"name" minLength:"1" example:"lecture" doc:"Recording name, used as the segment id prefix"`
		Ranges    string `json:"ranges" minLength:"1" example:"08:00-12:00, 13:00-17:30" doc:"Comma separated HH:MM[:SS]-HH:MM[:SS] ranges"`
		Timestamp *int64 `json:"timestamp,omitempty" example:"1715936400000" doc:"Optional wall clock in Unix milliseconds, applied before the schedule"`
	}
}

// TimeRequest sets the node clock.
type TimeRequest struct {
	Body struct {
		Timestamp int64 `json:"timestamp" example:"1715936400000" doc:"Wall clock in Unix milliseconds"`
	}
}

// LEDData reports the recording indicator.
type LEDData struct {
	LED       string   `json:"led,omitempty" example:"act" doc:"LED driven by the recorder"`
	Pattern   string   `json:"pattern" example:"solid" doc:"Current pattern: solid, blink or off"`
	Available []string `json:"available" doc:"LEDs offered by this board"`
}

type LEDResponse struct {
	Body LEDData
}
