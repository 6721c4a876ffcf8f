package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/jobs"
	"github.com/anstrom/netprobe/internal/scanning"
)

const testKey = "np_abcdefghijklmnopqrstuvwxyz234567"

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestAPIClient_ListScans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/scans", r.URL.Path)
		assert.Equal(t, "discovery", r.URL.Query().Get("kind"))
		assert.Equal(t, "running", r.URL.Query().Get("state"))
		assert.Equal(t, testKey, r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"data": []jobs.Info{
				{ID: "a", Kind: scanning.KindDiscovery, Network: "10.0.0.0/24", State: jobs.StateRunning, Total: 254},
			},
			"pagination": map[string]int{"page": 1, "page_size": 1000, "total_items": 1, "total_pages": 1},
		})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL+"/", testKey)
	list, err := client.ListScans(context.Background(), "discovery", "running")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, jobs.StateRunning, list[0].State)
	assert.Equal(t, 254, list[0].Total)
}

func TestAPIClient_GetScan_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scans/missing", r.URL.Path)
		writeJSON(t, w, http.StatusNotFound, map[string]string{
			"error":      "not_found",
			"message":    "scan not found",
			"request_id": "req-1",
		})
	}))
	defer srv.Close()

	_, err := NewAPIClient(srv.URL, "").GetScan(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "scan not found", apiErr.Message)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.Contains(t, err.Error(), "request req-1")

	described := describeAPIError(err, "get job")
	assert.Contains(t, described.Error(), "get job: not found")
}

func TestAPIClient_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPIClient(srv.URL, "").CancelScan(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestAPIClient_CancelScan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/scans/job-1", r.URL.Path)
		writeJSON(t, w, http.StatusAccepted, jobs.Info{ID: "job-1", State: jobs.StateRunning})
	}))
	defer srv.Close()

	info, err := NewAPIClient(srv.URL, "").CancelScan(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", info.ID)
}

func TestAPIClient_Submit(t *testing.T) {
	var bodies []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]string
		require.NoError(t, json.Unmarshal(data, &body))
		bodies = append(bodies, body)

		kind := scanning.KindPortScan
		if r.URL.Path == "/api/v1/discovery" {
			kind = scanning.KindDiscovery
		}
		writeJSON(t, w, http.StatusAccepted, jobs.Info{ID: "new", Kind: kind, State: jobs.StateRunning})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "")

	info, err := client.SubmitPortScan(context.Background(), "10.0.0.5", "22,80")
	require.NoError(t, err)
	assert.Equal(t, scanning.KindPortScan, info.Kind)

	info, err = client.SubmitDiscovery(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, scanning.KindDiscovery, info.Kind)

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]string{"host": "10.0.0.5", "ports": "22,80"}, bodies[0])
	assert.Empty(t, bodies[1])
}

func TestAPIClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewAPIClient(srv.URL, "").GetScan(ctx, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewAPIClientFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.API.Host = "10.1.2.3"
	cfg.API.Port = 9999

	t.Run("configured address", func(t *testing.T) {
		viper.Set("api_key", testKey)
		defer viper.Set("api_key", "")

		client, err := newAPIClientFromConfig("", cfg)
		require.NoError(t, err)
		assert.Equal(t, "http://10.1.2.3:9999/api/v1", client.baseURL)
		assert.Equal(t, testKey, client.apiKey)
	})

	t.Run("server flag and key file", func(t *testing.T) {
		keyFile := filepath.Join(t.TempDir(), "key")
		require.NoError(t, os.WriteFile(keyFile, []byte(testKey+"\n"), 0o600))
		viper.Set("api_key_file", keyFile)
		defer viper.Set("api_key_file", "")

		client, err := newAPIClientFromConfig("https://probe.example.com", cfg)
		require.NoError(t, err)
		assert.Equal(t, "https://probe.example.com/api/v1", client.baseURL)
		assert.Equal(t, testKey, client.apiKey)
	})

	t.Run("missing key file", func(t *testing.T) {
		viper.Set("api_key_file", filepath.Join(t.TempDir(), "nope"))
		defer viper.Set("api_key_file", "")

		_, err := newAPIClientFromConfig("", cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read API key file")
	})

	t.Run("invalid server", func(t *testing.T) {
		_, err := newAPIClientFromConfig("not a url", cfg)
		require.Error(t, err)
	})
}

func TestWriteJobTable(t *testing.T) {
	var buf bytes.Buffer
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writeJobTable(&buf, []jobs.Info{
		{ID: "j1", Kind: scanning.KindPortScan, Target: "10.0.0.5", State: jobs.StateCompleted,
			Completed: 3, Total: 3, Origin: "api", CreatedAt: created},
		{ID: "j2", Kind: scanning.KindDiscovery, Network: "10.0.0.0/24", State: jobs.StateRunning,
			Completed: 10, Total: 254, Origin: "nightly", CreatedAt: created},
	}))

	out := buf.String()
	assert.Contains(t, out, "j1")
	assert.Contains(t, out, "10.0.0.5")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "10.0.0.0/24")
	assert.Contains(t, out, "10/254")
	assert.Contains(t, out, "nightly")
}
