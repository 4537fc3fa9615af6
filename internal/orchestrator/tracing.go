package orchestrator

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

const tracerName = "github.com/JakeFAU/wikiharvest/internal/orchestrator"

// traced runs fn inside a span named name. Fetches, index writes and the
// harvest notification all run on the span's context.
func (o *Orchestrator) traced(ctx context.Context, name string, fn func(context.Context) (Summary, error)) (Summary, error) {
	ctx, span := o.tracer.Start(ctx, name)
	defer span.End()

	summary, err := fn(ctx)
	span.SetAttributes(
		attribute.String("wikiharvest.run_id", summary.RunID),
		attribute.Int("wikiharvest.level", summary.Level),
		attribute.Int("wikiharvest.harvested", summary.Harvested),
		attribute.String("wikiharvest.reason", string(summary.Reason)),
	)
	if err != nil && !errors.Is(err, crawler.ErrNoWorkAvailable) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return summary, err
}

func (o *Orchestrator) startBatchSpan(ctx context.Context, name string, r *run, titles []crawler.Title) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("wikiharvest.run_id", r.id),
		attribute.Int("wikiharvest.level", r.store.Level()),
		attribute.Int("wikiharvest.titles", len(titles)),
	))
}
