// Package logger provides structured logging for notehub.
//
// It builds log/slog loggers with a shared, runtime-adjustable level and a
// ReplaceAttr hook that masks credentials before they reach the output:
//
//   - logger.go: handler construction and level management
//   - context.go: request-scoped logger and request ID in context.Context
//   - redact.go: sensitive key and value detection
package logger
