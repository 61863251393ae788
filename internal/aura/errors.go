package aura

import "fmt"

// AuthError indicates the OAuth token exchange failed. It is fatal: the
// whole run aborts, nothing is retried beyond the token cache check.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to get access token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ProvisioningError indicates a single create, clone or status call failed.
// It carries the instance name so batch callers can log and skip.
type ProvisioningError struct {
	Name string
	Op   string
	Err  error
}

func (e *ProvisioningError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("failed to %s instance '%s': %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("failed to %s instance: %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
