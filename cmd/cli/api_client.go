package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/jobs"
)

const (
	apiClientTimeout = 30 * time.Second
	apiBasePath      = "/api/v1"
)

// APIClient talks to a running netprobe service.
type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

// APIError represents an API error response
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("API error (status %d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// NewAPIClient creates a client for the service at server, for example
// "http://127.0.0.1:8080". apiKey may be empty when auth is disabled.
func NewAPIClient(server, apiKey string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(server, "/") + apiBasePath,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: apiClientTimeout,
		},
		userAgent: "netprobe-cli/" + version,
	}
}

// newAPIClientFromConfig builds a client from --server, or the configured
// API address, and the key in NETPROBE_API_KEY or NETPROBE_API_KEY_FILE.
func newAPIClientFromConfig(server string, cfg *config.Config) (*APIClient, error) {
	if server == "" {
		server = "http://" + cfg.GetAPIAddress()
	}
	if _, err := url.ParseRequestURI(server); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	key, err := apiKeyFromEnv()
	if err != nil {
		return nil, err
	}
	return NewAPIClient(server, key), nil
}

func apiKeyFromEnv() (string, error) {
	if key := viper.GetString("api_key"); key != "" {
		return key, nil
	}
	keyFile := viper.GetString("api_key_file")
	if keyFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(keyFile) // #nosec G304 -- operator-supplied key file
	if err != nil {
		return "", fmt.Errorf("failed to read API key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ListScans returns the jobs known to the service, optionally filtered by
// kind and state.
func (c *APIClient) ListScans(ctx context.Context, kind, state string) ([]jobs.Info, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if state != "" {
		q.Set("state", state)
	}
	q.Set("page_size", "1000")

	var page struct {
		Data []jobs.Info `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/scans?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// GetScan returns one job including its report when finished.
func (c *APIClient) GetScan(ctx context.Context, id string) (jobs.Info, error) {
	var info jobs.Info
	err := c.do(ctx, http.MethodGet, "/scans/"+url.PathEscape(id), nil, &info)
	return info, err
}

// CancelScan asks the service to cancel a running job.
func (c *APIClient) CancelScan(ctx context.Context, id string) (jobs.Info, error) {
	var info jobs.Info
	err := c.do(ctx, http.MethodDelete, "/scans/"+url.PathEscape(id), nil, &info)
	return info, err
}

// SubmitPortScan starts a port scan of host over ports on the service.
func (c *APIClient) SubmitPortScan(ctx context.Context, host, ports string) (jobs.Info, error) {
	var info jobs.Info
	body := map[string]string{"host": host, "ports": ports}
	err := c.do(ctx, http.MethodPost, "/scans/ports", body, &info)
	return info, err
}

// SubmitDiscovery starts a discovery of network on the service. An empty
// network uses the service default.
func (c *APIClient) SubmitDiscovery(ctx context.Context, network string) (jobs.Info, error) {
	var info jobs.Info
	body := map[string]string{}
	if network != "" {
		body["network"] = network
	}
	err := c.do(ctx, http.MethodPost, "/discovery", body, &info)
	return info, err
}

// do performs the HTTP request with authentication and decodes the JSON
// response into out.
func (c *APIClient) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var requestBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		requestBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, requestBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(bodyBytes, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// describeAPIError turns common API failures into actionable messages.
func describeAPIError(err error, operation string) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("authentication failed for %s, check NETPROBE_API_KEY: %w", operation, err)
	case http.StatusNotFound:
		return fmt.Errorf("%s: not found: %w", operation, err)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%s: service is shutting down or busy: %w", operation, err)
	default:
		return fmt.Errorf("%s failed: %w", operation, err)
	}
}
