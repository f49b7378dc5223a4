/*
Package tracing provides lightweight request tracing for the HTTP API.

Each request gets a span; the trace ID is taken from the X-Trace-ID header
when a caller supplies one, so a health-check run can tie its own logs to
the resolutions it triggered. Spans are logged through zap when they
finish: errors at error level, slow spans at info, the rest at debug.

# Usage

	tracer := tracing.New("selectorkit", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	// In a handler
	traceID := tracing.GetTraceID(c.Request.Context())
*/
package tracing
