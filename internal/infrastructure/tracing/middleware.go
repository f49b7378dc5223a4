package tracing

import (
	"github.com/gin-gonic/gin"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithTrace(c.Request.Context(),
			TraceID(c.GetHeader(HeaderTraceID)),
			SpanID(c.GetHeader(HeaderSpanID)))

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.url", c.Request.URL.String())
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		tracer.Finish(span)
	}
}
