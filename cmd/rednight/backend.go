package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/alfredjeanlab/rednight/internal/config"
	"github.com/alfredjeanlab/rednight/internal/store"
	"github.com/alfredjeanlab/rednight/internal/store/memory"
	"github.com/alfredjeanlab/rednight/internal/store/postgres"
	"github.com/alfredjeanlab/rednight/internal/store/s3blob"
)

// blobStore is everything the server needs from a payload store.
type blobStore interface {
	store.ConfigBlobs
	store.EnvironmentBlobs
	store.ObjectLister
}

// backend is the pair of stores selected by config.
type backend struct {
	envs    store.EnvironmentRepository
	configs store.ConfigRepository
	blobs   blobStore
	checks  map[string]store.Pinger
	closers []io.Closer
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		mem := memory.New()
		logger.Warn("using in-memory backend; data is lost on exit")
		return &backend{
			envs:    mem.Environments(),
			configs: mem.Configs(),
			blobs:   mem.Blobs(),
			checks:  map[string]store.Pinger{"memory": mem},
		}, nil

	case config.BackendPostgres:
		pg, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		blobs, err := s3blob.New(ctx, s3blob.Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("configuring S3: %w", err)
		}
		logger.Info("stores configured", "bucket", cfg.S3Bucket, "region", cfg.S3Region, "endpoint", cfg.S3Endpoint)
		return &backend{
			envs:    pg.Environments(),
			configs: pg.Configs(),
			blobs:   blobs,
			checks:  map[string]store.Pinger{"postgres": pg, "s3": blobs},
			closers: []io.Closer{pg},
		}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func (b *backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
