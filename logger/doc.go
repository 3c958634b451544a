// Package logger provides structured logging on top of zerolog.
//
// Loggers are scoped by service and component and accept optional field maps:
//
//	log := logger.Get("pipeline")
//	log.Info("captions generated", logger.Fields("job_id", id, "blocks", n))
//
// Console output is colored only when writing to a terminal.
package logger
