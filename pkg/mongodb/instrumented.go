package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/tracing"
)

// Observer records duration and outcome of repository operations.
// The zero value records nothing.
type Observer struct {
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewObserver creates an Observer. Either argument may be nil.
func NewObserver(m *metrics.Metrics, logger *logging.Logger) Observer {
	return Observer{metrics: m, logger: logger}
}

// Observe runs fn and records it under collection/operation. A
// mongo.ErrNoDocuments result counts as success.
func (o Observer) Observe(ctx context.Context, collection, operation string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.Tracer().Start(ctx, "mongodb."+collection+"."+operation,
		trace.WithAttributes(tracing.DatabaseSpanAttributes(operation, collection)...),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	success := err == nil || errors.Is(err, mongo.ErrNoDocuments)
	if success {
		tracing.EndSpan(span, nil)
	} else {
		tracing.EndSpan(span, err)
	}
	o.metrics.RecordMongoDBOperation(collection, operation, success, duration)
	if o.logger != nil {
		o.logger.DatabaseQuery(ctx, collection, operation, duration, success)
	}
	return err
}
