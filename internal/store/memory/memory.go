// Package memory implements every store contract on mutex-guarded maps. It
// backs `serve --backend memory` and the coordinator and server tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// Op names an operation for failure injection, e.g. "configs.Create" or
// "blobs.Put".
type Op string

const (
	OpEnvCreate     Op = "environments.Create"
	OpEnvGet        Op = "environments.Get"
	OpEnvList       Op = "environments.List"
	OpEnvDelete     Op = "environments.Delete"
	OpConfigCreate  Op = "configs.Create"
	OpConfigGet     Op = "configs.Get"
	OpConfigList    Op = "configs.List"
	OpConfigDelete  Op = "configs.Delete"
	OpBlobPut       Op = "blobs.Put"
	OpBlobGet       Op = "blobs.Get"
	OpBlobDelete    Op = "blobs.Delete"
	OpBlobDeleteAll Op = "blobs.DeleteAll"
	OpBlobList      Op = "blobs.List"
)

type configKey struct{ env, id int64 }

type blob struct {
	payload  string
	modified time.Time
}

// Store holds metadata rows and blobs for both entities.
type Store struct {
	mu       sync.Mutex
	envs     map[int64]*model.Environment
	configs  map[configKey]*model.Config
	blobs    map[string]blob
	failures map[Op]error
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		envs:     make(map[int64]*model.Environment),
		configs:  make(map[configKey]*model.Config),
		blobs:    make(map[string]blob),
		failures: make(map[Op]error),
		now:      time.Now,
	}
}

// Fail makes every subsequent call of op return err. A nil err clears it.
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetClock overrides the time source used for created_at and blob
// modification times.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// injected must be called with s.mu held.
func (s *Store) injected(op Op) error {
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Environments returns a store.EnvironmentRepository view of s.
func (s *Store) Environments() *Environments { return (*Environments)(s) }

// Configs returns a store.ConfigRepository view of s.
func (s *Store) Configs() *Configs { return (*Configs)(s) }

// Blobs returns the blob adapter view of s.
func (s *Store) Blobs() *Blobs { return (*Blobs)(s) }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Counts reports how many environment rows, config rows and blobs are stored.
func (s *Store) Counts() (envs, configs, blobs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.envs), len(s.configs), len(s.blobs)
}

// page applies keyset pagination to ids sorted ascending.
func page(ids []int64, cursor int64, pageSize int) (selected []int64, next string) {
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	start := sort.Search(len(ids), func(i int) bool { return ids[i] > cursor })
	rest := ids[start:]
	selected = rest
	if len(selected) > pageSize {
		selected = selected[:pageSize]
	}
	var last int64
	if len(selected) > 0 {
		last = selected[len(selected)-1]
	}
	return selected, store.NextPage(int64(len(rest)), len(selected), last)
}

// Environments implements store.EnvironmentRepository.
type Environments Store

var _ store.EnvironmentRepository = (*Environments)(nil)

func (r *Environments) Create(_ context.Context, id int64, in model.CreateEnvironment) (*model.Environment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpEnvCreate); err != nil {
		return nil, err
	}
	if _, ok := s.envs[id]; ok {
		return nil, fmt.Errorf("environment %d already exists", id)
	}
	e := &model.Environment{ID: id, Name: in.Name, CreatedAt: s.now().UnixMilli()}
	s.envs[id] = e
	cp := *e
	return &cp, nil
}

func (r *Environments) Get(_ context.Context, id int64) (*model.Environment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpEnvGet); err != nil {
		return nil, err
	}
	e, ok := s.envs[id]
	if !ok {
		return nil, fmt.Errorf("environment %d: %w", id, store.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (r *Environments) List(_ context.Context, cursor int64, pageSize int) ([]*model.Environment, string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpEnvList); err != nil {
		return nil, "", err
	}
	ids := make([]int64, 0, len(s.envs))
	for id := range s.envs {
		ids = append(ids, id)
	}
	selected, next := page(ids, cursor, pageSize)
	out := make([]*model.Environment, len(selected))
	for i, id := range selected {
		cp := *s.envs[id]
		out[i] = &cp
	}
	return out, next, nil
}

func (r *Environments) Delete(_ context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpEnvDelete); err != nil {
		return err
	}
	if _, ok := s.envs[id]; !ok {
		return fmt.Errorf("delete environment %d: %w", id, store.ErrNotFound)
	}
	delete(s.envs, id)
	for k := range s.configs {
		if k.env == id {
			delete(s.configs, k)
		}
	}
	return nil
}

func (r *Environments) Exists(_ context.Context, id int64) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.envs[id]
	return ok, nil
}

// Configs implements store.ConfigRepository.
type Configs Store

var _ store.ConfigRepository = (*Configs)(nil)

func (r *Configs) Create(_ context.Context, id, envID int64, in model.CreateConfig) (*model.Config, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpConfigCreate); err != nil {
		return nil, err
	}
	if _, ok := s.envs[envID]; !ok {
		return nil, fmt.Errorf("environment %d does not exist: %w", envID, store.ErrNotFound)
	}
	k := configKey{envID, id}
	if _, ok := s.configs[k]; ok {
		return nil, fmt.Errorf("config %d/%d already exists", envID, id)
	}
	c := &model.Config{ID: id, Name: in.Name, EnvironmentID: envID, CreatedAt: s.now().UnixMilli()}
	s.configs[k] = c
	cp := *c
	return &cp, nil
}

func (r *Configs) Get(_ context.Context, envID, id int64) (*model.Config, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpConfigGet); err != nil {
		return nil, err
	}
	c, ok := s.configs[configKey{envID, id}]
	if !ok {
		return nil, fmt.Errorf("config %d/%d: %w", envID, id, store.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *Configs) List(_ context.Context, envID, cursor int64, pageSize int) ([]*model.Config, string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpConfigList); err != nil {
		return nil, "", err
	}
	var ids []int64
	for k := range s.configs {
		if k.env == envID {
			ids = append(ids, k.id)
		}
	}
	selected, next := page(ids, cursor, pageSize)
	out := make([]*model.Config, len(selected))
	for i, id := range selected {
		cp := *s.configs[configKey{envID, id}]
		out[i] = &cp
	}
	return out, next, nil
}

func (r *Configs) Delete(_ context.Context, envID, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpConfigDelete); err != nil {
		return err
	}
	k := configKey{envID, id}
	if _, ok := s.configs[k]; !ok {
		return fmt.Errorf("delete config %d/%d: %w", envID, id, store.ErrNotFound)
	}
	delete(s.configs, k)
	return nil
}

func (r *Configs) Exists(_ context.Context, envID, id int64) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.configs[configKey{envID, id}]
	return ok, nil
}

// Blobs implements the blob adapters and store.ObjectLister.
type Blobs Store

var (
	_ store.ConfigBlobs      = (*Blobs)(nil)
	_ store.EnvironmentBlobs = (*Blobs)(nil)
	_ store.ObjectLister     = (*Blobs)(nil)
)

func (b *Blobs) Put(_ context.Context, envID, id int64, payload string) error {
	s := (*Store)(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpBlobPut); err != nil {
		return err
	}
	s.blobs[store.ConfigKey(envID, id)] = blob{payload: payload, modified: s.now()}
	return nil
}

func (b *Blobs) Get(_ context.Context, envID, id int64) (string, error) {
	s := (*Store)(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpBlobGet); err != nil {
		return "", err
	}
	key := store.ConfigKey(envID, id)
	obj, ok := s.blobs[key]
	if !ok {
		return "", fmt.Errorf("blob %s: %w", key, store.ErrNotFound)
	}
	return obj.payload, nil
}

// Delete removes one blob. Deleting a missing key succeeds, matching object
// store semantics.
func (b *Blobs) Delete(_ context.Context, envID, id int64) error {
	s := (*Store)(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpBlobDelete); err != nil {
		return err
	}
	delete(s.blobs, store.ConfigKey(envID, id))
	return nil
}

func (b *Blobs) DeleteAll(_ context.Context, envID int64) error {
	s := (*Store)(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpBlobDeleteAll); err != nil {
		return err
	}
	prefix := store.EnvironmentPrefix(envID)
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			delete(s.blobs, key)
		}
	}
	return nil
}

func (b *Blobs) List(_ context.Context, prefix string) ([]store.ObjectInfo, error) {
	s := (*Store)(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(OpBlobList); err != nil {
		return nil, err
	}
	var out []store.ObjectInfo
	for key, obj := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, store.ObjectInfo{Key: key, LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PutRaw stores a blob under an arbitrary key with the given modification
// time. Tests use it to plant orphaned or malformed objects.
func (b *Blobs) PutRaw(key, payload string, modified time.Time) {
	s := (*Store)(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob{payload: payload, modified: modified}
}
