package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName — имя инструментирующей библиотеки для span-ов RFC.
const TracerName = "github.com/Kargones/nwrfc"

// Ключи атрибутов span-а вызова.
const (
	AttrFunction = attribute.Key("rfc.function")
	AttrSysID    = attribute.Key("sap.sysid")
	AttrClient   = attribute.Key("sap.client")
	AttrConnID   = attribute.Key("rfc.connection_id")
	AttrOutcome  = attribute.Key("rfc.outcome")
)

// StartCallSpan начинает span вызова функционального модуля через глобальный provider.
// Если в контексте есть trace ID (WithTraceID) и нет активного span-а,
// span присоединяется к этому трейсу.
func StartCallSpan(ctx context.Context, function, sysID, client, connID string) (context.Context, trace.Span) {
	if !trace.SpanContextFromContext(ctx).IsValid() {
		if id := TraceIDFromContext(ctx); id != "" {
			ctx = ContextWithOTelTraceID(ctx, id)
		}
	}
	return otel.Tracer(TracerName).Start(ctx, "RFC "+function,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrFunction.String(function),
			AttrSysID.String(sysID),
			AttrClient.String(client),
			AttrConnID.String(connID),
		),
	)
}

// EndCallSpan завершает span с результатом вызова: outcome — код ошибки
// или "OK".
func EndCallSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(AttrOutcome.String(outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
