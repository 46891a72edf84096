package cmd

import "github.com/smazurov/camrecorder/internal/logging"

// initLogging sets up minimal logging for one-shot commands.
func initLogging(level string, logJSON bool) {
	cfg := logging.Config{Level: level, Format: "text"}
	if logJSON {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}
