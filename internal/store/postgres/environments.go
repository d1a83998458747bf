package postgres

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// EnvironmentRepository implements store.EnvironmentRepository.
type EnvironmentRepository struct {
	db  executor
	now func() int64
}

var _ store.EnvironmentRepository = (*EnvironmentRepository)(nil)

// NewEnvironmentRepository returns a repository issuing queries on db.
func NewEnvironmentRepository(db executor) *EnvironmentRepository {
	return &EnvironmentRepository{db: db, now: nowMillis}
}

func (r *EnvironmentRepository) Create(ctx context.Context, id int64, in model.CreateEnvironment) (*model.Environment, error) {
	e := &model.Environment{ID: id, Name: in.Name, CreatedAt: r.now()}
	if err := queryCreateEnvironment(ctx, r.db, e); err != nil {
		return nil, fmt.Errorf("create environment: %w", err)
	}
	return e, nil
}

func (r *EnvironmentRepository) Get(ctx context.Context, id int64) (*model.Environment, error) {
	e, err := queryGetEnvironment(ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("get environment: %w", err)
	}
	return e, nil
}

func (r *EnvironmentRepository) List(ctx context.Context, cursor int64, pageSize int) ([]*model.Environment, string, error) {
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	items, remaining, err := queryListEnvironments(ctx, r.db, cursor, pageSize)
	if err != nil {
		return nil, "", err
	}
	var last int64
	if len(items) > 0 {
		last = items[len(items)-1].ID
	}
	return items, store.NextPage(remaining, len(items), last), nil
}

// Delete checks that exactly one row exists, removes it together with its
// config rows, and confirms the row is gone.
func (r *EnvironmentRepository) Delete(ctx context.Context, id int64) error {
	n, err := queryCountEnvironment(ctx, r.db, id)
	if err != nil {
		return fmt.Errorf("count environment: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("delete environment %d: %w", id, store.ErrNotFound)
	}
	if err := queryDeleteEnvironment(ctx, r.db, id); err != nil {
		return err
	}
	n, err = queryCountEnvironment(ctx, r.db, id)
	if err != nil {
		return fmt.Errorf("recount environment: %w", err)
	}
	if n != 0 {
		return fmt.Errorf("delete environment %d: row still present: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *EnvironmentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := queryCountEnvironment(ctx, r.db, id)
	if err != nil {
		return false, fmt.Errorf("count environment: %w", err)
	}
	return n == 1, nil
}
