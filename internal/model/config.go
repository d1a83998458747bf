package model

// Config is a named payload owned by an environment. Config (the payload)
// lives in the blob store; every other field lives in the metadata store.
type Config struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Config        string `json:"config"`
	EnvironmentID int64  `json:"environment_id"`
	CreatedAt     int64  `json:"created_at"`
}

// CreateConfig holds the caller-supplied fields for a new config.
type CreateConfig struct {
	Name   string `json:"name"`
	Config string `json:"config"`
}

// ConfigSummary is the list projection of a Config. It never carries the
// payload.
type ConfigSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// Summary projects c into its list form.
func (c *Config) Summary() *ConfigSummary {
	return &ConfigSummary{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}
