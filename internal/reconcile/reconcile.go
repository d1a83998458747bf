// Package reconcile sweeps for payloads and metadata rows that a failed or
// interrupted two-store write left behind.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/rednight/internal/metrics"
	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// DefaultGrace keeps a sweep from racing creates that are still in flight.
const DefaultGrace = 5 * time.Minute

// Options configures a Sweeper.
type Options struct {
	// Interval between passes once started.
	Interval time.Duration
	// Grace is the minimum age of an object or row before it is considered
	// orphaned. Zero means DefaultGrace.
	Grace time.Duration
	// DryRun reports orphaned blobs without deleting them.
	DryRun  bool
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Report summarizes one pass.
type Report struct {
	ObjectsScanned int      `json:"objects_scanned"`
	RowsScanned    int      `json:"rows_scanned"`
	OrphanBlobs    []string `json:"orphan_blobs,omitempty"`
	DeletedBlobs   int      `json:"deleted_blobs"`
	MissingBlobs   []string `json:"missing_blobs,omitempty"`
	Unparseable    []string `json:"unparseable,omitempty"`
}

// Sweeper deletes blobs that have no metadata row and reports metadata rows
// that have no blob. Rows are never deleted.
type Sweeper struct {
	objects store.ObjectLister
	blobs   store.ConfigBlobs
	envs    store.EnvironmentRepository
	configs store.ConfigRepository

	interval time.Duration
	grace    time.Duration
	dryRun   bool
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sweeper over the given stores.
func New(objects store.ObjectLister, blobs store.ConfigBlobs, envs store.EnvironmentRepository, configs store.ConfigRepository, opts Options) *Sweeper {
	s := &Sweeper{
		objects:  objects,
		blobs:    blobs,
		envs:     envs,
		configs:  configs,
		interval: opts.Interval,
		grace:    opts.Grace,
		dryRun:   opts.DryRun,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if s.grace <= 0 {
		s.grace = DefaultGrace
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "reconcile")
	return s
}

// Start begins periodic sweeps. It runs an initial pass immediately, then
// on each tick.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the sweeper and waits for the current pass (if any) to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	s.sweepLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepLogged(ctx)
		}
	}
}

func (s *Sweeper) sweepLogged(ctx context.Context) {
	r, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("reconcile pass failed", "err", err)
		return
	}
	s.logger.Info("reconcile pass completed",
		"objects", r.ObjectsScanned,
		"rows", r.RowsScanned,
		"orphan_blobs", len(r.OrphanBlobs),
		"deleted_blobs", r.DeletedBlobs,
		"missing_blobs", len(r.MissingBlobs))
}

// RunOnce performs a single pass.
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	cutoff := s.now().Add(-s.grace)
	r := &Report{}

	objs, err := s.objects.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	r.ObjectsScanned = len(objs)

	present := make(map[string]struct{}, len(objs))
	for _, obj := range objs {
		present[obj.Key] = struct{}{}
		if err := s.checkObject(ctx, obj, cutoff, r); err != nil {
			return nil, err
		}
	}

	if err := s.checkRows(ctx, present, cutoff, r); err != nil {
		return nil, err
	}

	s.metrics.ReconcileRuns.Inc()
	return r, nil
}

func (s *Sweeper) checkObject(ctx context.Context, obj store.ObjectInfo, cutoff time.Time, r *Report) error {
	envID, id, err := store.ParseConfigKey(obj.Key)
	if err != nil {
		s.logger.Warn("skipping unrecognized object", "key", obj.Key, "err", err)
		r.Unparseable = append(r.Unparseable, obj.Key)
		s.metrics.ReconcileOrphans.WithLabelValues("blob", "unparseable").Inc()
		return nil
	}
	if obj.LastModified.After(cutoff) {
		return nil
	}
	exists, err := s.configs.Exists(ctx, envID, id)
	if err != nil {
		return fmt.Errorf("check config %s: %w", obj.Key, err)
	}
	if exists {
		return nil
	}

	r.OrphanBlobs = append(r.OrphanBlobs, obj.Key)
	if s.dryRun {
		s.logger.Info("orphaned blob", "key", obj.Key, "dry_run", true)
		s.metrics.ReconcileOrphans.WithLabelValues("blob", "reported").Inc()
		return nil
	}
	if err := s.blobs.Delete(ctx, envID, id); err != nil {
		s.logger.Warn("failed to delete orphaned blob", "key", obj.Key, "err", err)
		s.metrics.ReconcileOrphans.WithLabelValues("blob", "failed").Inc()
		return nil
	}
	s.logger.Info("deleted orphaned blob", "key", obj.Key)
	s.metrics.ReconcileOrphans.WithLabelValues("blob", "deleted").Inc()
	r.DeletedBlobs++
	return nil
}

// checkRows walks every environment and config page and reports rows old
// enough to have a payload that do not.
func (s *Sweeper) checkRows(ctx context.Context, present map[string]struct{}, cutoff time.Time, r *Report) error {
	cutoffMS := cutoff.UnixMilli()
	var envCursor int64
	for {
		envs, next, err := s.envs.List(ctx, envCursor, model.MaxPageSize)
		if err != nil {
			return fmt.Errorf("list environments: %w", err)
		}
		for _, env := range envs {
			if err := s.checkEnvironmentRows(ctx, env.ID, present, cutoffMS, r); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		if envCursor, err = model.DecodeCursor(next); err != nil {
			return err
		}
	}
}

func (s *Sweeper) checkEnvironmentRows(ctx context.Context, envID int64, present map[string]struct{}, cutoffMS int64, r *Report) error {
	var cursor int64
	for {
		rows, next, err := s.configs.List(ctx, envID, cursor, model.MaxPageSize)
		if err != nil {
			return fmt.Errorf("list configs of %d: %w", envID, err)
		}
		for _, row := range rows {
			r.RowsScanned++
			key := store.ConfigKey(envID, row.ID)
			if _, ok := present[key]; ok || row.CreatedAt > cutoffMS {
				continue
			}
			s.logger.Warn("config row has no payload", "key", key)
			s.metrics.ReconcileOrphans.WithLabelValues("row", "reported").Inc()
			r.MissingBlobs = append(r.MissingBlobs, key)
		}
		if next == "" {
			return nil
		}
		if cursor, err = model.DecodeCursor(next); err != nil {
			return err
		}
	}
}
