// Package oc wraps go.opencensus.io/trace with the start/end/status
// idiom the teacher's cmd/differ/log.go and internal/oc/errors.go use,
// scoped here to one request's Dispatch -> operation-handler call chain.
package oc

import (
	"context"

	"go.opencensus.io/trace"
)

// StartSpan starts a span named n and returns the derived context along
// with the span; callers defer span.End().
func StartSpan(ctx context.Context, n string, attrs ...trace.Attribute) (context.Context, *trace.Span) {
	ctx, s := trace.StartSpan(ctx, n)
	if len(attrs) > 0 {
		s.AddAttributes(attrs...)
	}
	return ctx, s
}

// SetSpanStatus records err (if any) on the span using the same
// code mapping as toStatusCode in errors.go.
func SetSpanStatus(s *trace.Span, err error) {
	if err == nil {
		return
	}
	s.SetStatus(trace.Status{Code: int32(toStatusCode(err)), Message: err.Error()})
}
