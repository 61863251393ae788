package aura

import (
	"github.com/tty47/aurafleet/internal/config"
)

// Status is the provisioning state the API reports for an instance.
type Status string

// Known instance statuses. The API may report intermediate states we do not
// enumerate; anything that is not running or terminal keeps polling.
const (
	StatusCreating Status = "creating"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
	StatusError    Status = "error"
)

// Terminal reports whether the instance will never reach running.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusError
}

// Instance is the provider's view of a provisioned database: the assigned id
// plus the connection credentials returned by the create call.
type Instance struct {
	ID            string
	Name          string
	ConnectionURL string
	Username      string
	Password      string
}

// tokenResponse is the OAuth token endpoint response body
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// createRequest is the body for POST /instances. The embedded InstanceConfig
// flattens into the payload; SourceInstanceID turns the create into a clone.
type createRequest struct {
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
	config.InstanceConfig
	SourceInstanceID string `json:"source_instance_id,omitempty"`
}

// instanceData is the `data` payload returned by a successful create
type instanceData struct {
	ID            string `json:"id"`
	ConnectionURL string `json:"connection_url"`
	Username      string `json:"username"`
	Password      string `json:"password"`
}

// createResponse is the envelope for POST /instances
type createResponse struct {
	Data instanceData `json:"data"`
}

// statusResponse is the envelope for GET /instances/{id}
type statusResponse struct {
	Data struct {
		Status Status `json:"status"`
	} `json:"data"`
}
