// Package log provides structured JSON logging with trace correlation
// for saga runs.
//
// The Logger writes JSON log lines with level, timestamp, message, and
// optional fields. When a trace span exists in the context, the logger
// automatically includes trace_id and span_id for correlation.
//
// Usage:
//
//	logger := log.New(os.Stdout, log.Info)
//	logger.InfoCtx(ctx, "stage started", "stage", "S3_SOURCING", "run_id", rc.RunID)
//
// For file logging with rotation:
//
//	fw, err := log.NewFileWriter("/var/log/purchasesaga.log", log.FileConfig{
//	    MaxSize:  10 * 1024 * 1024, // 10 MB
//	    MaxFiles: 5,
//	})
//	logger := log.New(fw, log.Debug)
package log
