// Package traced wraps a record.Store so every remote call becomes a span.
package traced

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukerupert/shelflife/internal/record"
)

const tracerName = "shelflife/store"

type Store struct {
	next    record.Store
	backend string
}

var _ record.Store = (*Store)(nil)

// Wrap names spans after backend, e.g. "sqlite" or "s3".
func Wrap(next record.Store, backend string) *Store {
	return &Store{next: next, backend: backend}
}

func (s *Store) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("store.backend", s.backend))
	return otel.Tracer(tracerName).Start(ctx, "RecordStore."+op, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Store) Query(ctx context.Context, t record.Type, pred record.Predicate) ([]*record.Record, error) {
	ctx, span := s.start(ctx, "Query",
		attribute.String("record.type", string(t)),
		attribute.String("query.field", pred.Field),
	)
	records, err := s.next.Query(ctx, t, pred)
	span.SetAttributes(attribute.Int("record.count", len(records)))
	end(span, err)
	return records, err
}

func (s *Store) FetchByKey(ctx context.Context, key record.Key) (*record.Record, error) {
	ctx, span := s.start(ctx, "FetchByKey", attribute.String("record.key", string(key)))
	r, err := s.next.FetchByKey(ctx, key)
	span.SetAttributes(attribute.Bool("record.found", r != nil))
	end(span, err)
	return r, err
}

func (s *Store) FetchByKeys(ctx context.Context, keys []record.Key) ([]*record.Record, error) {
	ctx, span := s.start(ctx, "FetchByKeys", attribute.Int("record.requested", len(keys)))
	records, err := s.next.FetchByKeys(ctx, keys)
	span.SetAttributes(attribute.Int("record.count", len(records)))
	end(span, err)
	return records, err
}

func (s *Store) Save(ctx context.Context, records []*record.Record, policy record.SavePolicy) ([]*record.Record, error) {
	ctx, span := s.start(ctx, "Save",
		attribute.Int("record.count", len(records)),
		attribute.String("save.policy", policy.String()),
	)
	saved, err := s.next.Save(ctx, records, policy)
	end(span, err)
	return saved, err
}

func (s *Store) Delete(ctx context.Context, keys []record.Key) ([]record.Key, error) {
	ctx, span := s.start(ctx, "Delete", attribute.Int("record.requested", len(keys)))
	deleted, err := s.next.Delete(ctx, keys)
	span.SetAttributes(attribute.Int("record.deleted", len(deleted)))
	end(span, err)
	return deleted, err
}

func (s *Store) Modify(ctx context.Context, save []*record.Record, del []record.Key, policy record.SavePolicy) ([]*record.Record, []record.Key, error) {
	ctx, span := s.start(ctx, "Modify",
		attribute.Int("record.count", len(save)),
		attribute.Int("record.requested", len(del)),
		attribute.String("save.policy", policy.String()),
	)
	saved, deleted, err := s.next.Modify(ctx, save, del, policy)
	span.SetAttributes(attribute.Int("record.deleted", len(deleted)))
	end(span, err)
	return saved, deleted, err
}
