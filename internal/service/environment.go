package service

import (
	"context"
	"time"

	"github.com/alfredjeanlab/rednight/internal/events"
	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// EnvironmentCoordinator implements the environment operations.
type EnvironmentCoordinator struct {
	base
	ids   IDGenerator
	repo  store.EnvironmentRepository
	blobs store.EnvironmentBlobs
}

// NewEnvironmentCoordinator wires an environment coordinator.
func NewEnvironmentCoordinator(ids IDGenerator, repo store.EnvironmentRepository, blobs store.EnvironmentBlobs, opts ...Option) *EnvironmentCoordinator {
	return &EnvironmentCoordinator{
		base:  newBase("environment", opts),
		ids:   ids,
		repo:  repo,
		blobs: blobs,
	}
}

// Create allocates an identifier and inserts the metadata row. Environments
// have no payload, so the blob store is not touched.
func (c *EnvironmentCoordinator) Create(ctx context.Context, in model.CreateEnvironment) (*model.Environment, error) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	env, err := c.repo.Create(ctx, c.ids.Generate(), in)
	if err != nil {
		return nil, c.finish("create", start, err)
	}
	c.publish(ctx, events.TopicEnvironmentCreated, events.EnvironmentCreated{Environment: env})
	return env, c.finish("create", start, nil)
}

// Get reads the metadata row.
func (c *EnvironmentCoordinator) Get(ctx context.Context, id int64) (*model.Environment, error) {
	start := time.Now()
	env, err := c.repo.Get(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, c.finish("get", start, err)
	}
	return env, c.finish("get", start, nil)
}

// List returns one keyset page of environments.
func (c *EnvironmentCoordinator) List(ctx context.Context, q model.PageQuery) (*model.Page[*model.Environment], error) {
	start := time.Now()
	cursor, err := model.DecodeCursor(q.NextPage)
	if err != nil {
		return nil, c.finish("list", start, err)
	}
	items, next, err := c.repo.List(context.WithoutCancel(ctx), cursor, model.ClampPageSize(q.PageSize))
	if err != nil {
		return nil, c.finish("list", start, err)
	}
	if items == nil {
		items = []*model.Environment{}
	}
	return &model.Page[*model.Environment]{Items: items, NextPage: next}, c.finish("list", start, nil)
}

// Delete removes every payload under the environment and its metadata rows
// concurrently. Both must succeed; nothing is compensated.
func (c *EnvironmentCoordinator) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	metaErr, blobErr := fanOut(
		func() error { return c.repo.Delete(ctx, id) },
		func() error { return c.blobs.DeleteAll(ctx, id) },
	)
	if err := firstErr(metaErr, blobErr); err != nil {
		return c.finish("delete", start, err)
	}
	c.publish(ctx, events.TopicEnvironmentDeleted, events.EnvironmentDeleted{EnvironmentID: id})
	return c.finish("delete", start, nil)
}
