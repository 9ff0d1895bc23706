// Package log builds the slog loggers used across bankrotscan.
//
// Every logger is wrapped by SecureHandler, which masks attributes that
// carry credentials: proxy passwords, cookies and authorization headers
// that an operator may configure for the HTTP transport.
//
// Three output formats are available: plain text (default), JSON for log
// aggregation, and a colored console format for interactive runs.
//
//	logger := log.NewLogger(os.Stderr, log.FormatColor, verbose)
//	logger.Info("collected", "kind", "legal", "count", 50)
package log
