// Package model defines the entities shared by the stores, coordinators and
// transport adapters.
package model

// Environment groups configs. It owns no payload of its own.
type Environment struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"` // milliseconds since the Unix epoch
}

// CreateEnvironment holds the caller-supplied fields for a new environment.
type CreateEnvironment struct {
	Name string `json:"name"`
}
