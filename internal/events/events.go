// Package events publishes change notifications for environments and configs.
package events

import (
	"context"

	"github.com/alfredjeanlab/rednight/internal/model"
)

// Event topic constants
const (
	TopicEnvironmentCreated = "rednight.environment.created"
	TopicEnvironmentDeleted = "rednight.environment.deleted"
	TopicConfigCreated      = "rednight.config.created"
	TopicConfigDeleted      = "rednight.config.deleted"

	// TopicAll matches every topic above.
	TopicAll = "rednight.>"
)

// Event types

type EnvironmentCreated struct {
	Environment *model.Environment `json:"environment"`
}

type EnvironmentDeleted struct {
	EnvironmentID int64 `json:"environment_id"`
}

// ConfigCreated carries the list projection; payloads are never published.
type ConfigCreated struct {
	EnvironmentID int64                `json:"environment_id"`
	Config        *model.ConfigSummary `json:"config"`
}

type ConfigDeleted struct {
	EnvironmentID int64 `json:"environment_id"`
	ConfigID      int64 `json:"config_id"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers events for topic, which may use NATS wildcards
	// such as TopicAll. The returned cancel function unsubscribes and closes
	// the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// NoopPublisher drops every event. The server uses it when no NATS URL is
// configured.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
