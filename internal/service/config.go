package service

import (
	"context"
	"sync"
	"time"

	"github.com/alfredjeanlab/rednight/internal/events"
	"github.com/alfredjeanlab/rednight/internal/metrics"
	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// ConfigCoordinator implements the config operations.
type ConfigCoordinator struct {
	base
	ids   IDGenerator
	repo  store.ConfigRepository
	blobs store.ConfigBlobs

	compensations sync.WaitGroup
}

// NewConfigCoordinator wires a config coordinator.
func NewConfigCoordinator(ids IDGenerator, repo store.ConfigRepository, blobs store.ConfigBlobs, opts ...Option) *ConfigCoordinator {
	return &ConfigCoordinator{
		base:  newBase("config", opts),
		ids:   ids,
		repo:  repo,
		blobs: blobs,
	}
}

// Create allocates an identifier, then inserts the metadata row (after the
// environment existence check) and uploads the payload concurrently.
//
// If either side fails, the side that succeeded is deleted in the
// background and the original failure is returned. The compensating delete
// is not awaited, not retried, and its own failure is only logged, so a
// crash or a second failure can leave an orphaned row or blob behind.
func (c *ConfigCoordinator) Create(ctx context.Context, envID int64, in model.CreateConfig) (*model.Config, error) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)
	id := c.ids.Generate()

	var cfg *model.Config
	metaErr, blobErr := fanOut(
		func() (err error) {
			cfg, err = c.repo.Create(ctx, id, envID, in)
			return err
		},
		func() error { return c.blobs.Put(ctx, envID, id, in.Config) },
	)
	if err := firstErr(metaErr, blobErr); err != nil {
		c.compensate(ctx, envID, id, metaErr == nil, blobErr == nil)
		return nil, c.finish("create", start, err)
	}

	cfg.Config = in.Config
	c.publish(ctx, events.TopicConfigCreated, events.ConfigCreated{EnvironmentID: envID, Config: cfg.Summary()})
	return cfg, c.finish("create", start, nil)
}

// compensate deletes the sides of a failed create that were written.
func (c *ConfigCoordinator) compensate(ctx context.Context, envID, id int64, row, blob bool) {
	if row {
		c.runCompensation(ctx, "metadata", envID, id, func() error { return c.repo.Delete(ctx, envID, id) })
	}
	if blob {
		c.runCompensation(ctx, "blob", envID, id, func() error { return c.blobs.Delete(ctx, envID, id) })
	}
}

func (c *ConfigCoordinator) runCompensation(ctx context.Context, side string, envID, id int64, del func() error) {
	c.compensations.Add(1)
	go func() {
		defer c.compensations.Done()
		if err := del(); err != nil {
			c.metrics.Compensations.WithLabelValues(side, metrics.OutcomeError).Inc()
			c.logger.Warn("compensating delete failed",
				"store", side, "environment_id", envID, "config_id", id, "error", err)
			return
		}
		c.metrics.Compensations.WithLabelValues(side, metrics.OutcomeOK).Inc()
		c.logger.Info("compensating delete succeeded",
			"store", side, "environment_id", envID, "config_id", id)
	}()
}

// WaitCompensations blocks until every compensating delete started so far
// has finished.
func (c *ConfigCoordinator) WaitCompensations() {
	c.compensations.Wait()
}

// Get reads the metadata row and the payload concurrently. Either failing
// fails the call.
func (c *ConfigCoordinator) Get(ctx context.Context, envID, id int64) (*model.Config, error) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	var (
		cfg     *model.Config
		payload string
	)
	metaErr, blobErr := fanOut(
		func() (err error) {
			cfg, err = c.repo.Get(ctx, envID, id)
			return err
		},
		func() (err error) {
			payload, err = c.blobs.Get(ctx, envID, id)
			return err
		},
	)
	if err := firstErr(metaErr, blobErr); err != nil {
		return nil, c.finish("get", start, err)
	}
	cfg.Config = payload
	return cfg, c.finish("get", start, nil)
}

// List returns one keyset page of config summaries. Payloads are not read.
func (c *ConfigCoordinator) List(ctx context.Context, envID int64, q model.PageQuery) (*model.Page[*model.ConfigSummary], error) {
	start := time.Now()
	cursor, err := model.DecodeCursor(q.NextPage)
	if err != nil {
		return nil, c.finish("list", start, err)
	}
	rows, next, err := c.repo.List(context.WithoutCancel(ctx), envID, cursor, model.ClampPageSize(q.PageSize))
	if err != nil {
		return nil, c.finish("list", start, err)
	}
	items := make([]*model.ConfigSummary, len(rows))
	for i, row := range rows {
		items[i] = row.Summary()
	}
	return &model.Page[*model.ConfigSummary]{Items: items, NextPage: next}, c.finish("list", start, nil)
}

// Delete removes the metadata row and the payload concurrently. Both must
// succeed; a one-sided failure is reported and not compensated.
func (c *ConfigCoordinator) Delete(ctx context.Context, envID, id int64) error {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	metaErr, blobErr := fanOut(
		func() error { return c.repo.Delete(ctx, envID, id) },
		func() error { return c.blobs.Delete(ctx, envID, id) },
	)
	if err := firstErr(metaErr, blobErr); err != nil {
		return c.finish("delete", start, err)
	}
	c.publish(ctx, events.TopicConfigDeleted, events.ConfigDeleted{EnvironmentID: envID, ConfigID: id})
	return c.finish("delete", start, nil)
}
