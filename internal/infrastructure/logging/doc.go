// Package logging provides structured logging for the Aquos bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the bridge, the MQTT client and
// the control API.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// At debug level every frame sent to the TV and every reply is logged.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting bridge", "address", cfg.TV.Address)
//	logger.Component("aquos").Error("failed to open transport", "error", err)
package logging
