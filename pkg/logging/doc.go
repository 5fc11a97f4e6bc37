// Package logging provides the structured logging used across labbot.
//
// It is a thin layer over Go's standard slog package that tags every entry
// with a subsystem and renders printf-style messages.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging, e.g. every discovered endpoint
//   - **Info**: Batch progress, one line per request sent
//   - **Warn**: Phases that hit their wall-clock bound
//   - **Error**: Per-user failures that were dropped or collected
//
// # Usage
//
//	import "labbot/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("LabBot", "Sending request to: %s", target)
//	logging.Error("LabBot", err, "Token acquisition failed for %s", userID)
//
// JSON output for log aggregation:
//
//	logging.Init(logging.ParseLevel("debug"), os.Stderr, logging.FormatJSON)
//
// # Subsystems
//
//   - **Config**: Property and settings loading
//   - **Discovery**: Conformance statement lookups
//   - **Robot**: Browser-driven login flows
//   - **LabBot**: Batch phases and per-user tasks
//   - **CLI**: Command execution
//
// # Thread Safety
//
// All functions are safe for concurrent use. Init may be called again to
// reconfigure output; loggers obtained from With keep their original handler.
package logging
