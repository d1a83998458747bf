// Package store defines the persistence contracts the coordinators are built
// on: metadata repositories (one per entity) and blob adapters for config
// payloads.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/rednight/internal/model"
)

// ErrNotFound is returned (wrapped) when a referenced entity, parent or blob
// does not exist.
var ErrNotFound = errors.New("not found")

// EnvironmentRepository persists environment metadata.
type EnvironmentRepository interface {
	Create(ctx context.Context, id int64, in model.CreateEnvironment) (*model.Environment, error)
	Get(ctx context.Context, id int64) (*model.Environment, error)
	// List returns up to pageSize environments with ids greater than cursor,
	// in ascending id order, and the next-page token ("" when exhausted).
	List(ctx context.Context, cursor int64, pageSize int) ([]*model.Environment, string, error)
	// Delete removes the environment and every config row under it.
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
}

// ConfigRepository persists config metadata. Payloads are not stored here.
type ConfigRepository interface {
	// Create fails with ErrNotFound, without inserting, when envID does not
	// name exactly one environment.
	Create(ctx context.Context, id, envID int64, in model.CreateConfig) (*model.Config, error)
	Get(ctx context.Context, envID, id int64) (*model.Config, error)
	List(ctx context.Context, envID, cursor int64, pageSize int) ([]*model.Config, string, error)
	Delete(ctx context.Context, envID, id int64) error
	Exists(ctx context.Context, envID, id int64) (bool, error)
}

// ConfigBlobs stores config payloads addressed by ConfigKey.
type ConfigBlobs interface {
	Put(ctx context.Context, envID, id int64, payload string) error
	Get(ctx context.Context, envID, id int64) (string, error)
	Delete(ctx context.Context, envID, id int64) error
}

// EnvironmentBlobs removes every payload stored under an environment.
type EnvironmentBlobs interface {
	DeleteAll(ctx context.Context, envID int64) error
}

// ObjectInfo describes one stored blob.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// ObjectLister enumerates stored blobs whose key starts with prefix.
type ObjectLister interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConfigKey returns the blob key for a config payload.
func ConfigKey(envID, id int64) string {
	return strconv.FormatInt(envID, 10) + "/" + strconv.FormatInt(id, 10)
}

// EnvironmentPrefix returns the key prefix shared by every payload of envID.
func EnvironmentPrefix(envID int64) string {
	return strconv.FormatInt(envID, 10) + "/"
}

// ParseConfigKey splits a key produced by ConfigKey.
func ParseConfigKey(key string) (envID, id int64, err error) {
	envPart, idPart, ok := strings.Cut(key, "/")
	if !ok {
		return 0, 0, fmt.Errorf("parse key %q: missing separator", key)
	}
	if envID, err = strconv.ParseInt(envPart, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("parse key %q: environment: %w", key, err)
	}
	if id, err = strconv.ParseInt(idPart, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("parse key %q: config: %w", key, err)
	}
	return envID, id, nil
}

// NextPage derives the next-page token for a keyset page: present only when
// more rows exist beyond the cursor than were returned.
func NextPage(remaining int64, returned int, lastID int64) string {
	if returned == 0 || remaining <= int64(returned) {
		return ""
	}
	return model.EncodeCursor(lastID)
}
