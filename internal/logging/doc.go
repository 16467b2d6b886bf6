// Package logging provides structured logging with OpenTelemetry correlation.
//
// # Overview
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - stderr output plus an optional OpenTelemetry log bridge
//   - correlation fields taken from the context (trace_id, request.id, rfq.id)
//   - level-aware sampling that never drops errors
//
// Logs go to stderr by default so that stdout stays free for command output
// and the MCP stdio transport.
//
// # Usage
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, uuid.NewString())
//	ctx = logging.WithRFQID(ctx, "R26Q0042")
//	logger.Info(ctx, "rfq priced", zap.Int("items", 12))
//
// Domain packages take a plain *zap.Logger; pass Logger.Underlying().
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	svc := NewService(tl.Underlying())
//	tl.AssertLogged(t, zapcore.InfoLevel, "rfq priced")
package logging
