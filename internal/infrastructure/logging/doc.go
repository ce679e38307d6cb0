// Package logging provides structured logging for coopd.
//
// It wraps log/slog so every component logs with the same shape:
// JSON in production, text for local play-testing, and service/version
// fields on every entry.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	registry.SetLogger(logger.Component("gamepad"))
//	logger.Info("session started", "session_id", cfg.Session.ID)
//
// Never log secrets or tokens.
package logging
