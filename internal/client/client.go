// Package client provides a transport-agnostic interface for the rednight
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/rednight/internal/model"
)

// Client is the interface that all rednight CLI commands use to communicate
// with the server. It is implemented by HTTPClient.
type Client interface {
	// Environments
	CreateEnvironment(ctx context.Context, name string) (*model.Environment, error)
	GetEnvironment(ctx context.Context, id int64) (*model.Environment, error)
	ListEnvironments(ctx context.Context, q model.PageQuery) (*model.Page[*model.Environment], error)
	DeleteEnvironment(ctx context.Context, id int64) error

	// Configs
	CreateConfig(ctx context.Context, envID int64, in model.CreateConfig) (*model.Config, error)
	GetConfig(ctx context.Context, envID, id int64) (*model.Config, error)
	ListConfigs(ctx context.Context, envID int64, q model.PageQuery) (*model.Page[*model.ConfigSummary], error)
	DeleteConfig(ctx context.Context, envID, id int64) error

	// Health
	Health(ctx context.Context) (*HealthStatus, error)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

// HealthCheck is one dependency's ping result.
type HealthCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// AllEnvironments follows next_page cursors until the listing is exhausted.
func AllEnvironments(ctx context.Context, c Client, pageSize int) ([]*model.Environment, error) {
	return collect(func(next string) ([]*model.Environment, string, error) {
		page, err := c.ListEnvironments(ctx, model.PageQuery{NextPage: next, PageSize: pageSize})
		if err != nil {
			return nil, "", err
		}
		return page.Items, page.NextPage, nil
	})
}

// AllConfigs follows next_page cursors until the environment's listing is exhausted.
func AllConfigs(ctx context.Context, c Client, envID int64, pageSize int) ([]*model.ConfigSummary, error) {
	return collect(func(next string) ([]*model.ConfigSummary, string, error) {
		page, err := c.ListConfigs(ctx, envID, model.PageQuery{NextPage: next, PageSize: pageSize})
		if err != nil {
			return nil, "", err
		}
		return page.Items, page.NextPage, nil
	})
}

func collect[T any](fetch func(next string) ([]T, string, error)) ([]T, error) {
	var all []T
	next := ""
	for {
		items, cursor, err := fetch(next)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if cursor == "" || cursor == next {
			return all, nil
		}
		next = cursor
	}
}
