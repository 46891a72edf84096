// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to the systemd journal when available and stdout is not already journald
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"recorder": "debug", // Per-module overrides
//			"api":      "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("recorder").With("segment", id)
//	logger.Info("Stream started")  // Includes segment in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// Every logger writes to stdout (text or JSON) when stdout is connected to a
// terminal, pipe or file. Records also go to the systemd journal directly,
// with attributes as journal fields, unless stdout is itself the journal
// stream of a systemd service.
//
// Every logger also feeds an in-memory ring buffer ([GetBuffer]) and the callback
// registered with [SetLogCallback], which back the log stream of the web UI.
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t camrecorder              # All camrecorder logs
//	journalctl -t camrecorder -f           # Follow live
//	journalctl -t camrecorder --since "5m" # Last 5 minutes
//	journalctl -t camrecorder -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t camrecorder MODULE=recorder
//	journalctl -t camrecorder SEGMENT=lecture-2024-05-17T09:00:00
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	recorder = "debug"
//	control = "debug"
//	api = "warn"
package logging
