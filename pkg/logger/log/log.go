// Package log is the context-aware face of pkg/logger: fields attached to a
// context with With are added to every entry logged with that context.
package log

import (
	"context"

	"github.com/nguyentranbao-ct/chat-desk/pkg/logger"
)

type fieldsKey struct{}

var std = logger.MustNamed("ctx")

// With returns a copy of ctx carrying extra key/value pairs for logging.
func With(ctx context.Context, keysAndValues ...any) context.Context {
	prev := Fields(ctx)
	fields := make([]any, 0, len(prev)+len(keysAndValues))
	fields = append(fields, prev...)
	fields = append(fields, keysAndValues...)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

// Fields returns the key/value pairs attached to ctx.
func Fields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).([]any)
	return fields
}

func merge(ctx context.Context, keysAndValues []any) []any {
	fields := Fields(ctx)
	if len(fields) == 0 {
		return keysAndValues
	}
	out := make([]any, 0, len(fields)+len(keysAndValues))
	out = append(out, fields...)
	return append(out, keysAndValues...)
}

func Logw(ctx context.Context, lvl logger.Level, msg string, keysAndValues ...any) {
	std.Logw(lvl, msg, merge(ctx, keysAndValues)...)
}

func Debugw(ctx context.Context, msg string, keysAndValues ...any) {
	std.Debugw(msg, merge(ctx, keysAndValues)...)
}

func Infow(ctx context.Context, msg string, keysAndValues ...any) {
	std.Infow(msg, merge(ctx, keysAndValues)...)
}

func Warnw(ctx context.Context, msg string, keysAndValues ...any) {
	std.Warnw(msg, merge(ctx, keysAndValues)...)
}

func Errorw(ctx context.Context, msg string, keysAndValues ...any) {
	std.Errorw(msg, merge(ctx, keysAndValues)...)
}

func Infof(ctx context.Context, template string, args ...any) {
	std.With(Fields(ctx)...).Infof(template, args...)
}

func Warnf(ctx context.Context, template string, args ...any) {
	std.With(Fields(ctx)...).Warnf(template, args...)
}

func Fatal(args ...any) {
	std.Fatal(args...)
}
