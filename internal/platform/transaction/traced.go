package transaction

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sharedtx "github.com/unitygrave/cardshop/modules/shared/transaction"
)

const tracerName = "github.com/unitygrave/cardshop/internal/platform/transaction"

// TracedScope wraps a scope so every unit of work gets its own span.
type TracedScope struct {
	next   sharedtx.Scope
	name   string
	tracer trace.Tracer
}

func NewTracedScope(next sharedtx.Scope, name string) *TracedScope {
	return &TracedScope{
		next:   next,
		name:   name,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracedScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, s.name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	err := s.next.Execute(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Compile-time interface check.
var _ sharedtx.Scope = (*TracedScope)(nil)
