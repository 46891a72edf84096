package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camrecorder/cmd"
	"github.com/smazurov/camrecorder/internal/api"
	"github.com/smazurov/camrecorder/internal/camera"
	"github.com/smazurov/camrecorder/internal/clock"
	"github.com/smazurov/camrecorder/internal/config"
	"github.com/smazurov/camrecorder/internal/control"
	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/led"
	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/metrics/exporters"
	"github.com/smazurov/camrecorder/internal/recorder"
	"github.com/smazurov/camrecorder/internal/schedule"
	"github.com/smazurov/camrecorder/internal/streaming"
	"github.com/smazurov/camrecorder/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8000" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	CameraDevice    string `help:"Camera device path or /dev/v4l id" default:"/dev/video0" toml:"camera.device" env:"CAMERA_DEVICE"`
	CameraLoopback  string `help:"Loopback device shared by the encoders" default:"/dev/video10" toml:"camera.loopback" env:"CAMERA_LOOPBACK"`
	CameraWidth     int    `help:"Capture width" default:"1280" toml:"camera.width" env:"CAMERA_WIDTH"`
	CameraHeight    int    `help:"Capture height" default:"720" toml:"camera.height" env:"CAMERA_HEIGHT"`
	CameraFramerate int    `help:"Capture frame rate" default:"25" toml:"camera.framerate" env:"CAMERA_FRAMERATE"`
	CameraCapture   string `help:"Capture command template (empty for the built-in ffmpeg pipeline)" toml:"camera.capture_command" env:"CAMERA_CAPTURE_COMMAND"`
	CameraPreview   string `help:"Preview encoder command template" toml:"camera.preview_command" env:"CAMERA_PREVIEW_COMMAND"`
	CameraRecording string `help:"Recording encoder command template" toml:"camera.recording_command" env:"CAMERA_RECORDING_COMMAND"`
	CameraOverlay   string `help:"Timestamp overlay text file" default:"run/overlay.txt" toml:"camera.overlay_file" env:"CAMERA_OVERLAY_FILE"`

	// Recording settings
	RecordingWorkDir       string `help:"Directory for raw segments" default:"tmp" toml:"recording.work_dir" env:"RECORDING_WORK_DIR"`
	RecordingOutputDir     string `help:"Directory for finalized recordings" default:"recordings" toml:"recording.output_dir" env:"RECORDING_OUTPUT_DIR"`
	RecordingMuxCommand    string `help:"Muxing command template" default:"mkvmerge -o {output} --timestamps 0:{pts} {raw}" toml:"recording.mux_command" env:"RECORDING_MUX_COMMAND"`
	RecordingRemoveSources bool   `help:"Delete raw segments after muxing" default:"true" toml:"recording.remove_sources" env:"RECORDING_REMOVE_SOURCES"`
	RecordingPollInterval  string `help:"How often the schedule is evaluated" default:"1m" toml:"recording.poll_interval" env:"RECORDING_POLL_INTERVAL"`

	// Metrics settings
	MetricsProgressDir string `help:"Directory for ffmpeg progress sockets (empty disables encoder metrics)" default:"run" toml:"metrics.progress_dir" env:"METRICS_PROGRESS_DIR"`
	MetricsPrometheus  bool   `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSE         bool   `help:"Publish encoder metrics on /api/events" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`

	// LED settings
	LedEnabled bool   `help:"Show recording state on a board LED" default:"false" toml:"led.enabled" env:"LED_ENABLED"`
	LedName    string `help:"LED to use (default: first one the board offers)" toml:"led.name" env:"LED_NAME"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingCamera   string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingControl  string `help:"Controller logging level" default:"info" toml:"logging.control" env:"LOGGING_CONTROL"`
	LoggingRecorder string `help:"Recorder logging level" default:"info" toml:"logging.recorder" env:"LOGGING_RECORDER"`
	LoggingMetrics  string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
	LoggingLed      string `help:"LED logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
				"camera":   opts.LoggingCamera,
				"control":  opts.LoggingControl,
				"recorder": opts.LoggingRecorder,
				"metrics":  opts.LoggingMetrics,
				"led":      opts.LoggingLed,
			},
		})
		logger := logging.GetLogger("main")

		pollInterval, err := time.ParseDuration(opts.RecordingPollInterval)
		if err != nil {
			logger.Warn("Invalid poll interval, using default", "value", opts.RecordingPollInterval, "default", control.DefaultPollInterval)
			pollInterval = control.DefaultPollInterval
		}

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Forward log lines to /api/logs/stream subscribers
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEvent(entry))
		})

		nodeClock := clock.New()
		sched := schedule.New()

		finalizer := recorder.NewMKVMerge(recorder.MKVMergeOptions{
			Command:       opts.RecordingMuxCommand,
			RemoveSources: opts.RecordingRemoveSources,
			Clock:         nodeClock,
			Events:        eventBus,
		})
		rec := recorder.New(recorder.Options{
			Schedule:  sched,
			Clock:     nodeClock,
			WorkDir:   opts.RecordingWorkDir,
			OutputDir: opts.RecordingOutputDir,
			Finalizer: finalizer,
			Events:    eventBus,
		})

		frames := streaming.NewFrameBuffer(streaming.DefaultFrameTimeout)

		cam := camera.New(camera.Options{
			Source:           opts.CameraDevice,
			Loopback:         opts.CameraLoopback,
			Width:            opts.CameraWidth,
			Height:           opts.CameraHeight,
			FPS:              opts.CameraFramerate,
			CaptureCommand:   opts.CameraCapture,
			PreviewCommand:   opts.CameraPreview,
			RecordingCommand: opts.CameraRecording,
			OverlayPath:      opts.CameraOverlay,
			ProgressDir:      opts.MetricsProgressDir,
			Clock:            nodeClock,
			Preview:          frames,
			Recording:        rec,
			Events:           eventBus,
		})

		controller := control.New(control.Options{
			Camera:       cam,
			Schedule:     sched,
			Clock:        nodeClock,
			PollInterval: pollInterval,
			Events:       eventBus,
		})

		// Initialize LED indicator if enabled
		var ledManager *led.Manager
		if opts.LedEnabled {
			ledLogger := logging.GetLogger("led")
			ledManager = led.NewManager(led.New(ledLogger), opts.LedName, eventBus, ledLogger)
		}

		apiOpts := &api.Options{
			Controller: controller,
			Frames:     frames,
			EventBus:   eventBus,
		}
		if opts.MetricsPrometheus {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		if ledManager != nil {
			apiOpts.LEDs = ledManager
		}
		server := api.NewServer(apiOpts)

		var sseExporter *exporters.SSEExporter
		if opts.MetricsSSE {
			sseExporter = exporters.NewSSEExporter(eventBus)
		}

		// Logging levels follow config file edits without a restart
		watcher := config.NewConfigWatcher(opts.Config, config.LoadLoggingConfigE, logger)
		watcher.OnReload(func(cfg logging.Config) {
			logging.Initialize(cfg)
			logger.Info("Logging configuration reloaded", "level", cfg.Level)
		})

		ctx, cancel := context.WithCancel(context.Background())
		loopDone := make(chan struct{})

		hooks.OnStart(func() {
			if configErr := cam.Configure(ctx); configErr != nil {
				logger.Error("Failed to configure camera", "error", configErr)
				os.Exit(1)
			}

			if pending, pendingErr := recorder.Pending(opts.RecordingWorkDir, opts.RecordingOutputDir); pendingErr == nil && len(pending) > 0 {
				logger.Warn("Unfinalized segments found, run 'camrecorder finalize' to mux them", "count", len(pending), "work_dir", opts.RecordingWorkDir)
			}

			if ledManager != nil {
				ledManager.Start()
			}
			if sseExporter != nil {
				sseExporter.Start(ctx)
			}
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Failed to watch config file", "path", opts.Config, "error", watchErr)
			}

			go func() {
				defer close(loopDone)
				controller.Run(ctx)
			}()

			listener, listenErr := net.Listen("tcp", opts.Port)
			if listenErr != nil {
				logger.Error("Failed to start HTTP server", "error", listenErr)
				os.Exit(1)
			}
			logger.Info("Starting HTTP server", "addr", listener.Addr().String(), "version", version.Get().String())

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			if serveErr := server.Serve(listener); serveErr != nil {
				logger.Error("HTTP server failed", "error", serveErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyStopping); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop the poll loop before switching the hardware off
			cancel()
			<-loopDone

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if stopErr := controller.Shutdown(shutdownCtx); stopErr != nil {
				logger.Error("Error stopping camera", "error", stopErr)
			}
			shutdownCancel()
			cam.Close()

			// The last segment is muxed after the recording encoder exits
			waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if waitErr := finalizer.Wait(waitCtx); waitErr != nil {
				logger.Warn("Finalization interrupted, run 'camrecorder finalize' to recover", "error", waitErr)
			}
			waitCancel()

			if ledManager != nil {
				ledManager.Stop()
			}
			if sseExporter != nil {
				sseExporter.Stop()
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
		})
	})

	cli.Root().Use = "camrecorder"
	cli.Root().Short = "Scheduled segment recorder with live MJPEG preview"
	cli.Root().Version = version.Get().String()

	cli.Root().AddCommand(cmd.CreateFinalizeCmd())
	cli.Root().AddCommand(cmd.CreateCheckScheduleCmd())

	// Run the CLI
	cli.Run()
}
