// Package service coordinates environment and config operations across the
// metadata store and the blob store.
//
// Every operation that touches both stores issues the two calls concurrently
// and waits for both to settle before reporting. There is no cross-store
// transaction: a failed config create triggers a detached compensating delete
// of whichever side succeeded, and nothing else is rolled back. Store calls
// run on a context detached from the caller's cancellation, so a client that
// disconnects does not abort writes already in flight.
package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/rednight/internal/events"
	"github.com/alfredjeanlab/rednight/internal/metrics"
)

// IDGenerator issues unique, increasing identifiers.
type IDGenerator interface {
	Generate() int64
}

// Option configures a coordinator.
type Option func(*base)

// WithPublisher sets the event publisher. The default publishes nothing.
func WithPublisher(p events.Publisher) Option {
	return func(b *base) { b.publisher = p }
}

// WithMetrics sets the metrics sink. Without it, a fresh registry nobody
// scrapes is used.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

// base carries what both coordinators share.
type base struct {
	entity    string
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func newBase(entity string, opts []Option) base {
	b := base{entity: entity}
	for _, opt := range opts {
		opt(&b)
	}
	if b.publisher == nil {
		b.publisher = &events.NoopPublisher{}
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", entity+"-coordinator")
	return b
}

// finish records metrics for one operation and returns err classified.
func (b *base) finish(op string, start time.Time, err error) error {
	outcome := metrics.OutcomeOK
	if err != nil {
		se := newError(op+" "+b.entity, err)
		switch se.Code {
		case CodeNotFound:
			outcome = metrics.OutcomeNotFound
		case CodeInvalidArgument:
			outcome = metrics.OutcomeInvalid
		default:
			outcome = metrics.OutcomeError
			b.logger.Error("operation failed", "op", op, "error", err)
		}
		err = se
	}
	b.metrics.ObserveOperation(b.entity, op, outcome, time.Since(start))
	return err
}

// publish emits an event. Failures are logged but do not block the caller.
func (b *base) publish(ctx context.Context, topic string, event any) {
	if err := b.publisher.Publish(ctx, topic, event); err != nil {
		b.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// fanOut runs meta and blob concurrently and returns once both have
// returned. Neither is cancelled when the other fails.
func fanOut(meta, blob func() error) (metaErr, blobErr error) {
	var g errgroup.Group
	g.Go(func() error {
		metaErr = meta()
		return metaErr
	})
	g.Go(func() error {
		blobErr = blob()
		return blobErr
	})
	_ = g.Wait()
	return metaErr, blobErr
}

// firstErr prefers the metadata error so NotFound from an existence check is
// what the caller sees when both sides fail.
func firstErr(metaErr, blobErr error) error {
	if metaErr != nil {
		return metaErr
	}
	return blobErr
}
