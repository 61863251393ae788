// Package constants provides centralized definitions of constants used throughout the application
package constants

// Environment variable names
const (
	// EnvAuraClientID is the environment variable containing the Aura API client ID
	EnvAuraClientID = "AURA_CLIENT_ID"

	// EnvAuraClientSecret is the environment variable containing the Aura API client secret
	EnvAuraClientSecret = "AURA_CLIENT_SECRET"

	// EnvAuraTenantID is the environment variable containing the Aura tenant the instances are provisioned into
	EnvAuraTenantID = "AURA_TENANT_ID"

	// EnvAuraAPIBase is the environment variable overriding the Aura API base URL
	EnvAuraAPIBase = "AURA_API_BASE"

	// EnvAuraTokenURL is the environment variable overriding the OAuth token endpoint
	EnvAuraTokenURL = "AURA_TOKEN_URL"

	// EnvLogLevel is the environment variable controlling the default log level
	EnvLogLevel = "LOG_LEVEL"
)
