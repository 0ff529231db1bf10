package repository

import (
	"context"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/metrics"
	"github.com/hilthontt/tourchat/internal/infrastructure/tracing"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "tourchat/mongo"

// instrument opens a span for a store operation and returns the function that closes it
// and records the latency.
func instrument(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, op, append(attrs, attribute.String("db.system", "mongodb"))...)
	return ctx, func(err error) {
		metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		tracing.End(span, err)
	}
}

// storeErr keeps domain sentinels as they are and marks everything else unavailable.
func storeErr(op string, err error) error {
	if err == nil || domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return domain.Unavailable(op, err)
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes of every collection the repositories use.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for _, repo := range []indexer{
		&roomRepository{db: database},
		&messageRepository{db: database},
		&roomAuditLogRepository{db: database},
	} {
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
