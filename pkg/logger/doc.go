// Package logger builds slog loggers with the conventions used across the
// service: JSON output in production, text in development, and a small set of
// attribute helpers for the fields every component logs (tenant, operation,
// error).
//
//	log := logger.New(logger.WithProduction("quotakit"))
//	log.Info("admission denied", logger.TenantID(id), logger.Error(err))
package logger
