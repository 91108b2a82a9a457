package oc

import (
	"context"
	"errors"

	"go.opencensus.io/trace"

	"github.com/seyi/mapserver/internal/wmserrors"
)

func toStatusCode(err error) uint32 {
	switch {
	case checkErrors(err, context.Canceled):
		return trace.StatusCodeCancelled
	case checkErrors(err, context.DeadlineExceeded):
		return trace.StatusCodeDeadlineExceeded
	}

	var wmsErr *wmserrors.Error
	if errors.As(err, &wmsErr) {
		switch wmsErr.Kind {
		case wmserrors.KindNotFound:
			return trace.StatusCodeNotFound
		case wmserrors.KindInvalidArgument:
			return trace.StatusCodeInvalidArgument
		case wmserrors.KindNotImplemented:
			return trace.StatusCodeUnimplemented
		case wmserrors.KindInternal:
			return trace.StatusCodeInternal
		}
	}

	return trace.StatusCodeUnknown
}

func checkErrors(err error, errs ...error) bool {
	for _, e := range errs {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}
