package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// traceIDKey — ключ trace ID в context.
type traceIDKey struct{}

// WithTraceID возвращает context с trace ID. Существующий trace ID перезаписывается.
//
//	ctx = tracing.WithTraceID(ctx, tracing.GenerateTraceID())
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext извлекает trace ID из context.
// Возвращает пустую строку, если trace ID не установлен или context == nil.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ContextWithOTelTraceID добавляет в контекст remote span context с указанным
// trace ID, чтобы span-ы вызовов RFC попадали в тот же трейс, что и записи лога.
// При невалидном traceIDHex возвращает исходный контекст.
func ContextWithOTelTraceID(ctx context.Context, traceIDHex string) context.Context {
	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return ctx
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}
