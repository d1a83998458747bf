package postgres

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// ConfigRepository implements store.ConfigRepository.
type ConfigRepository struct {
	db  executor
	now func() int64
}

var _ store.ConfigRepository = (*ConfigRepository)(nil)

// NewConfigRepository returns a repository issuing queries on db.
func NewConfigRepository(db executor) *ConfigRepository {
	return &ConfigRepository{db: db, now: nowMillis}
}

// Create inserts the config row after confirming its environment exists.
// The check and the insert are separate statements.
func (r *ConfigRepository) Create(ctx context.Context, id, envID int64, in model.CreateConfig) (*model.Config, error) {
	n, err := queryCountEnvironment(ctx, r.db, envID)
	if err != nil {
		return nil, fmt.Errorf("count environment: %w", err)
	}
	if n != 1 {
		return nil, fmt.Errorf("environment %d does not exist: %w", envID, store.ErrNotFound)
	}
	c := &model.Config{ID: id, Name: in.Name, EnvironmentID: envID, CreatedAt: r.now()}
	if err := queryCreateConfig(ctx, r.db, c); err != nil {
		return nil, fmt.Errorf("create config: %w", err)
	}
	return c, nil
}

func (r *ConfigRepository) Get(ctx context.Context, envID, id int64) (*model.Config, error) {
	c, err := queryGetConfig(ctx, r.db, envID, id)
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return c, nil
}

func (r *ConfigRepository) List(ctx context.Context, envID, cursor int64, pageSize int) ([]*model.Config, string, error) {
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	items, remaining, err := queryListConfigs(ctx, r.db, envID, cursor, pageSize)
	if err != nil {
		return nil, "", err
	}
	var last int64
	if len(items) > 0 {
		last = items[len(items)-1].ID
	}
	return items, store.NextPage(remaining, len(items), last), nil
}

func (r *ConfigRepository) Delete(ctx context.Context, envID, id int64) error {
	n, err := queryCountConfig(ctx, r.db, envID, id)
	if err != nil {
		return fmt.Errorf("count config: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("delete config %d/%d: %w", envID, id, store.ErrNotFound)
	}
	if err := queryDeleteConfig(ctx, r.db, envID, id); err != nil {
		return fmt.Errorf("delete config: %w", err)
	}
	n, err = queryCountConfig(ctx, r.db, envID, id)
	if err != nil {
		return fmt.Errorf("recount config: %w", err)
	}
	if n != 0 {
		return fmt.Errorf("delete config %d/%d: row still present: %w", envID, id, store.ErrNotFound)
	}
	return nil
}

func (r *ConfigRepository) Exists(ctx context.Context, envID, id int64) (bool, error) {
	n, err := queryCountConfig(ctx, r.db, envID, id)
	if err != nil {
		return false, fmt.Errorf("count config: %w", err)
	}
	return n == 1, nil
}
