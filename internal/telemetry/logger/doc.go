// Package logger provides structured logging for AggMesh.
//
// It builds slog loggers with JSON output by default and a globally
// adjustable level, so the level can be changed at runtime when the
// configuration file is reloaded.
package logger
