package keystore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/repository"
	"github.com/turtacn/sharedcookie/internal/domain/service"
)

const tracerName = "github.com/turtacn/sharedcookie/internal/infrastructure/keystore"

// instrumentedStore records latency metrics and spans around a backend.
type instrumentedStore struct {
	next    repository.KeyStore
	metrics service.Metrics
}

// Instrument decorates a store with metrics and tracing. Change notifications
// of the wrapped store stay visible.
func Instrument(store repository.KeyStore, metrics service.Metrics) repository.KeyStore {
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	return &instrumentedStore{next: store, metrics: metrics}
}

func (s *instrumentedStore) Name() string { return s.next.Name() }

func (s *instrumentedStore) LoadAll(ctx context.Context) ([]*models.KeyEntry, error) {
	ctx, end := s.observe(ctx, "load")
	keys, err := s.next.LoadAll(ctx)
	end(err)
	return keys, err
}

func (s *instrumentedStore) Save(ctx context.Context, key *models.KeyEntry) error {
	ctx, end := s.observe(ctx, "save")
	err := s.next.Save(ctx, key)
	end(err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, end := s.observe(ctx, "delete")
	err := s.next.Delete(ctx, id)
	end(err)
	return err
}

// Changes returns nil, which blocks forever, when the backend cannot notify.
func (s *instrumentedStore) Changes() <-chan struct{} {
	if n, ok := s.next.(repository.KeyChangeNotifier); ok {
		return n.Changes()
	}
	return nil
}

func (s *instrumentedStore) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "KeyStore."+op)
	span.SetAttributes(attribute.String("keystore.backend", s.next.Name()))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.RecordKeyStoreOperation(s.next.Name(), op, time.Since(start), err)
	}
}
