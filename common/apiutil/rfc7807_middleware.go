package apiutil

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/pkg/errors"
)

const problemContentType = "application/problem+json"

// Problem writes err as an RFC 7807 document and aborts the chain. The
// original error is attached to the context so the access log records it.
// Driver errors that escape a service are mapped onto API kinds first.
func Problem(c *gin.Context, err error) {
	_ = c.Error(err)

	err = database.WrapError(err)
	details := errors.ToProblemDetails(err, c.Request.URL.Path)
	if traceID := GetTraceID(c); traceID != "" {
		details.WithTraceID(traceID)
	}
	c.Header("Content-Type", problemContentType)
	c.AbortWithStatusJSON(details.Status, details)
}

// BindError turns a gin binding failure into a 400 problem.
func BindError(c *gin.Context, err error) {
	Problem(c, errors.Invalid.Explain("Malformed request body").Wrap(err))
}

// GetTraceID returns the active span's trace id, falling back to the
// X-Trace-ID request header.
func GetTraceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if traceID, exists := c.Get("trace_id"); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Trace-ID")
}
