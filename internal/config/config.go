// Package config holds the environment-driven application configuration and
// the per-batch instance configuration.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Defaults applied when flags do not override them.
const (
	// DefaultMaxRetries is the readiness polling attempt budget
	DefaultMaxRetries = 30

	// DefaultRetryInterval is the fixed interval between readiness polls
	DefaultRetryInterval = 10 * time.Second

	// DefaultCredentialsFile is the ledger file written next to the binary
	DefaultCredentialsFile = "db_credentials.json"
)

// Config stores the Aura API credentials and endpoints. All values come from
// the environment (optionally via a .env file loaded by the CLI).
type Config struct {
	ClientID     string `envconfig:"AURA_CLIENT_ID" required:"true"`
	ClientSecret string `envconfig:"AURA_CLIENT_SECRET" required:"true"`
	TenantID     string `envconfig:"AURA_TENANT_ID" required:"true"`
	APIBase      string `envconfig:"AURA_API_BASE" default:"https://api.neo4j.io/v1"`
	TokenURL     string `envconfig:"AURA_TOKEN_URL" default:"https://api.neo4j.io/oauth/token"`
}

// Load reads the configuration from the environment. Missing required
// variables are reported as a ConfigError before any network call is made.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return &cfg, nil
}

// InstanceConfig is the set of provisioning parameters applied uniformly to
// an entire create/clone batch. Serialized as part of the create request.
type InstanceConfig struct {
	Version       string `json:"version"`
	Region        string `json:"region"`
	Memory        string `json:"memory"`
	Type          string `json:"type"`
	CloudProvider string `json:"cloud_provider"`
}

// DefaultInstanceConfig returns the instance parameters used when no flags
// override them.
func DefaultInstanceConfig() InstanceConfig {
	return InstanceConfig{
		Version:       "5",
		Region:        "europe-west1",
		Memory:        "2GB",
		Type:          "enterprise-db",
		CloudProvider: "gcp",
	}
}

// ConfigError indicates missing or invalid startup configuration. It is
// fatal: the CLI exits before issuing any API call.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
