package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	environmentColumns = `id, name, created_at`
	configColumns      = `environment_id, id, name, created_at`
)

func queryCount(ctx context.Context, db executor, query string, args ...any) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Environments

func queryCreateEnvironment(ctx context.Context, db executor, e *model.Environment) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO environments (id, name, created_at) VALUES ($1, $2, $3)`,
		e.ID, e.Name, e.CreatedAt)
	return err
}

func queryGetEnvironment(ctx context.Context, db executor, id int64) (*model.Environment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+environmentColumns+` FROM environments WHERE id = $1`, id)
	e, err := scanEnvironment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("environment %d: %w", id, store.ErrNotFound)
	}
	return e, err
}

func queryCountEnvironment(ctx context.Context, db executor, id int64) (int64, error) {
	return queryCount(ctx, db, `SELECT count(*) FROM environments WHERE id = $1`, id)
}

// queryListEnvironments runs the page query and the remaining-rows count
// concurrently.
func queryListEnvironments(ctx context.Context, db executor, cursor int64, limit int) ([]*model.Environment, int64, error) {
	var (
		items     []*model.Environment
		remaining int64
		g         errgroup.Group
	)
	g.Go(func() error {
		rows, err := db.QueryContext(ctx,
			`SELECT `+environmentColumns+` FROM environments WHERE id > $1 ORDER BY id LIMIT $2`,
			cursor, limit)
		if err != nil {
			return fmt.Errorf("list environments: %w", err)
		}
		defer rows.Close()
		items, err = scanEnvironments(rows)
		return err
	})
	g.Go(func() error {
		n, err := queryCount(ctx, db, `SELECT count(*) FROM environments WHERE id > $1`, cursor)
		if err != nil {
			return fmt.Errorf("count environments: %w", err)
		}
		remaining = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, remaining, nil
}

// queryDeleteEnvironment removes the environment row and every config row
// under it concurrently.
func queryDeleteEnvironment(ctx context.Context, db executor, id int64) error {
	var g errgroup.Group
	g.Go(func() error {
		if _, err := db.ExecContext(ctx, `DELETE FROM environments WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete environment: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := db.ExecContext(ctx, `DELETE FROM configs WHERE environment_id = $1`, id); err != nil {
			return fmt.Errorf("delete environment configs: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Configs

func queryCreateConfig(ctx context.Context, db executor, c *model.Config) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO configs (environment_id, id, name, created_at) VALUES ($1, $2, $3, $4)`,
		c.EnvironmentID, c.ID, c.Name, c.CreatedAt)
	return err
}

func queryGetConfig(ctx context.Context, db executor, envID, id int64) (*model.Config, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM configs WHERE environment_id = $1 AND id = $2`, envID, id)
	c, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config %d/%d: %w", envID, id, store.ErrNotFound)
	}
	return c, err
}

func queryCountConfig(ctx context.Context, db executor, envID, id int64) (int64, error) {
	return queryCount(ctx, db,
		`SELECT count(*) FROM configs WHERE environment_id = $1 AND id = $2`, envID, id)
}

func queryListConfigs(ctx context.Context, db executor, envID, cursor int64, limit int) ([]*model.Config, int64, error) {
	var (
		items     []*model.Config
		remaining int64
		g         errgroup.Group
	)
	g.Go(func() error {
		rows, err := db.QueryContext(ctx,
			`SELECT `+configColumns+` FROM configs WHERE environment_id = $1 AND id > $2 ORDER BY id LIMIT $3`,
			envID, cursor, limit)
		if err != nil {
			return fmt.Errorf("list configs: %w", err)
		}
		defer rows.Close()
		items, err = scanConfigs(rows)
		return err
	})
	g.Go(func() error {
		n, err := queryCount(ctx, db,
			`SELECT count(*) FROM configs WHERE environment_id = $1 AND id > $2`, envID, cursor)
		if err != nil {
			return fmt.Errorf("count configs: %w", err)
		}
		remaining = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, remaining, nil
}

func queryDeleteConfig(ctx context.Context, db executor, envID, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM configs WHERE environment_id = $1 AND id = $2`, envID, id)
	return err
}
