package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/rednight/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEnvironment scans a row in environmentColumns order.
func scanEnvironment(row scannable) (*model.Environment, error) {
	var e model.Environment
	if err := row.Scan(&e.ID, &e.Name, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// scanConfig scans a row in configColumns order. The payload is not part of
// the metadata row and is left empty.
func scanConfig(row scannable) (*model.Config, error) {
	var c model.Config
	if err := row.Scan(&c.EnvironmentID, &c.ID, &c.Name, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanEnvironments(rows *sql.Rows) ([]*model.Environment, error) {
	var out []*model.Environment
	for rows.Next() {
		e, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanConfigs(rows *sql.Rows) ([]*model.Config, error) {
	var out []*model.Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
