package aura

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tty47/aurafleet/internal/config"
)

// newTestClient creates a client pointed at the given test server, with a
// controllable clock.
func newTestClient(serverURL string) (*Client, *time.Time) {
	cfg := &config.Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		TenantID:     "tenant-123",
		APIBase:      serverURL + "/v1",
		TokenURL:     serverURL + "/oauth/token",
	}

	client := NewClient(cfg)
	current := time.Now()
	client.now = func() time.Time { return current }
	return client, &current
}

// tokenHandler answers the OAuth endpoint and counts hits.
func tokenHandler(t *testing.T, calls *int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*calls++

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "test-client", user)
		assert.Equal(t, "test-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "test-token", "expires_in": 3600}`))
	}
}

func TestClient_Authenticate_CachesToken(t *testing.T) {
	tokenCalls := 0
	server := httptest.NewServer(tokenHandler(t, &tokenCalls))
	defer server.Close()

	client, clock := newTestClient(server.URL)

	token, err := client.Authenticate()
	require.NoError(t, err)
	assert.Equal(t, "test-token", token)
	assert.Equal(t, 1, tokenCalls)

	// Second call within the safety margin returns the cached token without
	// a network call.
	token, err = client.Authenticate()
	require.NoError(t, err)
	assert.Equal(t, "test-token", token)
	assert.Equal(t, 1, tokenCalls)

	// Still cached well before the margin.
	*clock = clock.Add(30 * time.Minute)
	_, err = client.Authenticate()
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)

	// Inside the 5 minute refresh margin of the 60 minute TTL: exactly one
	// refresh.
	*clock = clock.Add(26 * time.Minute)
	_, err = client.Authenticate()
	require.NoError(t, err)
	assert.Equal(t, 2, tokenCalls)
}

func TestClient_Authenticate_DefaultTTL(t *testing.T) {
	tokenCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls++
		// No expires_in: the client assumes one hour.
		_, _ = w.Write([]byte(`{"access_token": "test-token"}`))
	}))
	defer server.Close()

	client, clock := newTestClient(server.URL)

	_, err := client.Authenticate()
	require.NoError(t, err)

	*clock = clock.Add(50 * time.Minute)
	_, err = client.Authenticate()
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)

	*clock = clock.Add(6 * time.Minute)
	_, err = client.Authenticate()
	require.NoError(t, err)
	assert.Equal(t, 2, tokenCalls)
}

func TestClient_Authenticate_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid_client"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	_, err := client.Authenticate()
	require.Error(t, err)

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
}

func TestClient_CreateInstance(t *testing.T) {
	tests := []struct {
		name     string
		sourceID string
	}{
		{name: "create from scratch", sourceID: ""},
		{name: "clone from source", sourceID: "src-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenCalls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/oauth/token" {
					tokenHandler(t, &tokenCalls)(w, r)
					return
				}

				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/instances", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

				var payload map[string]interface{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.Equal(t, "workshop-1", payload["name"])
				assert.Equal(t, "tenant-123", payload["tenant_id"])
				assert.Equal(t, "5", payload["version"])
				assert.Equal(t, "europe-west1", payload["region"])
				assert.Equal(t, "2GB", payload["memory"])
				assert.Equal(t, "enterprise-db", payload["type"])
				assert.Equal(t, "gcp", payload["cloud_provider"])
				if tt.sourceID != "" {
					assert.Equal(t, tt.sourceID, payload["source_instance_id"])
				} else {
					assert.NotContains(t, payload, "source_instance_id")
				}

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"data": {
					"id": "db-1",
					"connection_url": "neo4j+s://db-1.databases.neo4j.io",
					"username": "neo4j",
					"password": "secret"
				}}`))
			}))
			defer server.Close()

			client, _ := newTestClient(server.URL)

			inst, err := client.CreateInstance(context.Background(), "workshop-1", config.DefaultInstanceConfig(), tt.sourceID)
			require.NoError(t, err)
			assert.Equal(t, "db-1", inst.ID)
			assert.Equal(t, "workshop-1", inst.Name)
			assert.Equal(t, "neo4j+s://db-1.databases.neo4j.io", inst.ConnectionURL)
			assert.Equal(t, "neo4j", inst.Username)
			assert.Equal(t, "secret", inst.Password)
		})
	}
}

func TestClient_CreateInstance_Failure(t *testing.T) {
	tokenCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			tokenHandler(t, &tokenCalls)(w, r)
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors": [{"message": "out of capacity"}]}`))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	_, err := client.CreateInstance(context.Background(), "workshop-1", config.DefaultInstanceConfig(), "")
	require.Error(t, err)

	var provErr *ProvisioningError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "workshop-1", provErr.Name)
}

func TestClient_GetInstanceStatus(t *testing.T) {
	tokenCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			tokenHandler(t, &tokenCalls)(w, r)
			return
		}
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/instances/db-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": {"status": "creating"}}`))
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	status, err := client.GetInstanceStatus(context.Background(), "db-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCreating, status)
}

func TestClient_DeleteInstance(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{name: "accepted", statusCode: http.StatusAccepted, want: true},
		{name: "ok is not confirmation", statusCode: http.StatusOK, want: false},
		{name: "not found", statusCode: http.StatusNotFound, want: false},
		{name: "server error", statusCode: http.StatusInternalServerError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenCalls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/oauth/token" {
					tokenHandler(t, &tokenCalls)(w, r)
					return
				}
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/v1/instances/db-1", r.URL.Path)
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client, _ := newTestClient(server.URL)
			assert.Equal(t, tt.want, client.DeleteInstance(context.Background(), "db-1", "workshop-1"))
		})
	}
}

// statusSequenceServer answers status polls with a scripted sequence and
// counts the checks. An empty entry yields a transport-level failure (HTTP 500).
func statusSequenceServer(t *testing.T, statuses []string, checks *int) *httptest.Server {
	tokenCalls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			tokenHandler(t, &tokenCalls)(w, r)
			return
		}

		idx := *checks
		*checks++
		require.Less(t, idx, len(statuses), "more status checks than scripted")

		if statuses[idx] == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"data": {"status": "` + statuses[idx] + `"}}`))
	}))
}

func TestClient_WaitUntilRunning(t *testing.T) {
	tests := []struct {
		name        string
		statuses    []string
		maxAttempts int
		want        bool
		wantChecks  int
	}{
		{
			name:        "running after two polls",
			statuses:    []string{"creating", "creating", "running"},
			maxAttempts: 5,
			want:        true,
			wantChecks:  3,
		},
		{
			name:        "terminal failure stops immediately",
			statuses:    []string{"creating", "failed"},
			maxAttempts: 5,
			want:        false,
			wantChecks:  2,
		},
		{
			name:        "error status stops immediately",
			statuses:    []string{"error"},
			maxAttempts: 5,
			want:        false,
			wantChecks:  1,
		},
		{
			name:        "attempt budget exhausted",
			statuses:    []string{"creating", "creating", "creating"},
			maxAttempts: 3,
			want:        false,
			wantChecks:  3,
		},
		{
			name:        "transient status errors are retried",
			statuses:    []string{"", "creating", "running"},
			maxAttempts: 5,
			want:        true,
			wantChecks:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks := 0
			server := statusSequenceServer(t, tt.statuses, &checks)
			defer server.Close()

			client, _ := newTestClient(server.URL)

			got := client.WaitUntilRunning(context.Background(), "db-1", tt.maxAttempts, time.Millisecond)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChecks, checks)
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.False(t, StatusCreating.Terminal())
	assert.False(t, StatusRunning.Terminal())
}
