// Package logging provides structured logging for the vif runner.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level filtering and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("scene started", "scene", sc.Name)
//	logger.Error("command failed", "action", "cursor.click", "error", err)
//
// Components take a narrow Logger interface (Debug/Info/Warn/Error) so that
// *logging.Logger can be passed directly and tests can pass nothing.
package logging
