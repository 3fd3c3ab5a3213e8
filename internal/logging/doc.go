// Package logging provides structured logging utilities for calm.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Build the process logger once from configuration:
//
//	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(logger, "agent.run")
//	logger.Debug("tool finished",
//	    logging.Tool("create_event"),
//	    logging.Status(logging.StatusSuccess))
//
// Tokens and API keys are never logged directly; use SanitizeToken.
package logging
