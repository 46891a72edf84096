// Package api serves the node's HTTP surface: the htmx control page and its
// fragments, the MJPEG preview, a JSON API, SSE streams and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camrecorder/internal/api/models"
	"github.com/smazurov/camrecorder/internal/control"
	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/streaming"
	"github.com/smazurov/camrecorder/internal/version"
	"github.com/smazurov/camrecorder/ui"
)

// Controller is the part of control.Controller the API drives.
type Controller interface {
	Status() control.Status
	AddViewer(ctx context.Context) error
	RemoveViewer(ctx context.Context) error
	Record(ctx context.Context, name, ranges string) error
	StopRecording(ctx context.Context) error
	SetTime(ctx context.Context, wall int64) error
}

// LEDStatus reports the recording indicator.
type LEDStatus interface {
	LED() string
	Pattern() string
	Available() []string
}

// Options configures the API server.
type Options struct {
	Controller        Controller
	Frames            *streaming.FrameBuffer
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
	LEDs              LEDStatus    // Optional
}

// Server is the HTTP API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camrecorder API", version.String())
	config.Info.Description = "Scheduled recording and live preview for a single camera"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	eventBus := opts.EventBus
	if eventBus == nil {
		eventBus = events.New()
	}

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: eventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	if page, err := ui.Handler(); err == nil {
		mux.Handle("GET /{$}", page)
	} else {
		server.logger.Warn("Control page unavailable", "error", err)
	}

	return server
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve serves HTTP on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("Starting API server", "addr", listener.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+listener.Addr().String()+"/docs")

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and every open connection. Preview viewers see
// their request context cancelled and release their viewer slot.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerControlRoutes()
	s.registerFragmentRoutes()
	s.registerStreamRoutes()
	s.registerLEDRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}
