// Package aura implements the client for the Aura provisioning API:
// OAuth2 client-credentials authentication, instance create/clone, status
// lookup, deletion and readiness polling.
package aura

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/fiber/v2"

	"github.com/tty47/aurafleet/internal/config"
	"github.com/tty47/aurafleet/internal/logger"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// createTimeout is the timeout for instance create/clone requests, which the
// API answers noticeably slower than status or delete calls
const createTimeout = 60 * time.Second

// tokenRefreshMargin is how long before expiry a cached token is refreshed
const tokenRefreshMargin = 5 * time.Minute

// defaultTokenTTL is assumed when the token response omits expires_in
const defaultTokenTTL = 3600 * time.Second

// Client talks to the Aura provisioning API. It caches the bearer token
// until shortly before expiry. Not safe for concurrent use; the CLI runs a
// single sequential workflow.
type Client struct {
	cfg     *config.Config
	timeout time.Duration

	token        string
	tokenExpires time.Time
	now          func() time.Time
}

// NewClient creates a new API client for the given configuration
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:     cfg,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
}

// Authenticate exchanges the stored client credentials for a bearer token.
// A cached token is returned as long as it is more than tokenRefreshMargin
// away from expiry.
func (c *Client) Authenticate() (string, error) {
	if c.token != "" && c.now().Before(c.tokenExpires.Add(-tokenRefreshMargin)) {
		return c.token, nil
	}

	agent := fiber.Post(c.cfg.TokenURL)
	agent.Timeout(c.timeout)
	agent.BasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	args := fiber.AcquireArgs()
	args.Set("grant_type", "client_credentials")
	agent.Form(args)
	defer fiber.ReleaseArgs(args)

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", &AuthError{Err: errs[0]}
	}
	if statusCode < 200 || statusCode >= 300 {
		return "", &AuthError{Err: fmt.Errorf("token endpoint returned status %d: %s", statusCode, string(body))}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", &AuthError{Err: fmt.Errorf("error decoding token response: %w", err)}
	}
	if token.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("token endpoint returned no access_token")}
	}

	ttl := defaultTokenTTL
	if token.ExpiresIn > 0 {
		ttl = time.Duration(token.ExpiresIn) * time.Second
	}

	c.token = token.AccessToken
	c.tokenExpires = c.now().Add(ttl)
	logger.Debugf("Obtained new access token, valid for %s", ttl)

	return c.token, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint,
// authenticated with the cached (or freshly fetched) bearer token
func (c *Client) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	token, err := c.Authenticate()
	if err != nil {
		return nil, err
	}

	fullURL := c.cfg.APIBase + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Authorization", "Bearer "+token)
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")

	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and decodes the response into v. Non-2xx
// status codes are returned as *fiber.Error carrying the response body.
func (c *Client) doRequest(agent *fiber.Agent, v interface{}) error {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		return &fiber.Error{
			Code:    statusCode,
			Message: string(body),
		}
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// CreateInstance provisions a new database instance. When sourceID is
// non-empty the instance is cloned from that source instead of created from
// scratch. Failures are reported as *ProvisioningError carrying the name.
func (c *Client) CreateInstance(ctx context.Context, name string, cfg config.InstanceConfig, sourceID string) (*Instance, error) {
	op := "create"
	if sourceID != "" {
		op = "clone"
	}

	req := createRequest{
		Name:             name,
		TenantID:         c.cfg.TenantID,
		InstanceConfig:   cfg,
		SourceInstanceID: sourceID,
	}

	createCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		createCtx, cancel = context.WithTimeout(ctx, createTimeout)
		defer cancel()
	}

	agent, err := c.createAgent(createCtx, http.MethodPost, "/instances", req)
	if err != nil {
		return nil, &ProvisioningError{Name: name, Op: op, Err: err}
	}

	var response createResponse
	if err := c.doRequest(agent, &response); err != nil {
		return nil, &ProvisioningError{Name: name, Op: op, Err: err}
	}

	if sourceID != "" {
		logger.Infof("Cloned instance '%s' with ID: %s", name, response.Data.ID)
	} else {
		logger.Infof("Created instance '%s' with ID: %s", name, response.Data.ID)
	}

	return &Instance{
		ID:            response.Data.ID,
		Name:          name,
		ConnectionURL: response.Data.ConnectionURL,
		Username:      response.Data.Username,
		Password:      response.Data.Password,
	}, nil
}

// GetInstanceStatus returns the current provisioning status of an instance
func (c *Client) GetInstanceStatus(ctx context.Context, id string) (Status, error) {
	agent, err := c.createAgent(ctx, http.MethodGet, "/instances/"+id, nil)
	if err != nil {
		return "", &ProvisioningError{Op: "get status of", Err: err}
	}

	var response statusResponse
	if err := c.doRequest(agent, &response); err != nil {
		return "", &ProvisioningError{Op: "get status of", Err: fmt.Errorf("instance %s: %w", id, err)}
	}

	return response.Data.Status, nil
}

// DeleteInstance requests deletion of an instance. It returns true only on
// a provider-confirmed 202 response; any other response or transport error
// is logged and reported as false so batch deletion can continue.
func (c *Client) DeleteInstance(ctx context.Context, id, name string) bool {
	agent, err := c.createAgent(ctx, http.MethodDelete, "/instances/"+id, nil)
	if err != nil {
		logger.Errorf("Error deleting instance '%s' (ID: %s): %v", name, id, err)
		return false
	}

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		logger.Errorf("Error deleting instance '%s' (ID: %s): %v", name, id, errs[0])
		return false
	}

	if statusCode != http.StatusAccepted {
		logger.Errorf("Failed to delete instance '%s' (ID: %s). Status: %d, Response: %s", name, id, statusCode, string(body))
		return false
	}

	logger.Infof("Successfully deleted instance '%s' (ID: %s)", name, id)
	return true
}

// WaitUntilRunning polls the instance status at a fixed interval until it
// becomes running, a terminal status is observed, or the attempt budget is
// exhausted. Transient status-check errors consume attempts but are retried.
func (c *Client) WaitUntilRunning(ctx context.Context, id string, maxAttempts int, interval time.Duration) bool {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	logger.Infof("Waiting for instance %s to be ready...", id)

	attempt := 0
	check := func() error {
		attempt++

		status, err := c.GetInstanceStatus(ctx, id)
		if err != nil {
			logger.Errorf("Error checking instance status: %v", err)
			return err
		}

		logger.Infof("Instance %s status: %s (attempt %d/%d)", id, status, attempt, maxAttempts)

		switch {
		case status == StatusRunning:
			return nil
		case status.Terminal():
			return backoff.Permanent(fmt.Errorf("instance %s entered terminal status %q", id, status))
		default:
			return fmt.Errorf("instance %s not ready: status %q", id, status)
		}
	}

	bf := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(check, bf); err != nil {
		logger.Errorf("Instance %s did not reach 'running' status: %v", id, err)
		return false
	}

	logger.Infof("Instance %s is now running", id)
	return true
}
