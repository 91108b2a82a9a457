package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// G returns the logrus.Entry stashed in ctx by WithLogger, or the
// standard logger's entry if none was stashed. Mirrors the teacher's
// internal/log.G(ctx) context-scoped logger idiom.
func G(ctx context.Context) *logrus.Entry {
	if l, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return l
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// WithLogger returns a context carrying entry, retrievable with G.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// WithField is a convenience wrapper: fetch the current logger, add a
// field, and stash the result back onto the context.
func WithField(ctx context.Context, key string, value any) context.Context {
	return WithLogger(ctx, G(ctx).WithField(key, value))
}

// Setup configures the standard logger's level and formatter. level is
// a logrus level name ("debug", "info", "warn", "error"); an invalid
// name falls back to "info".
func Setup(level string, jsonFormat bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if jsonFormat {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimeFormat})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: TimeFormat})
	}
}
