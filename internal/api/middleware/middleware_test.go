package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/anstrom/netprobe/internal/auth"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics/mocks"
)

const testKey = "np_abcdefghijklmnopqrstuvwxyz234567"

func createTestLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.NewWithWriter(logging.Config{Level: logging.LevelDebug, Format: logging.FormatJSON}, buf)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func testRing(t *testing.T) *auth.KeyRing {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testKey), bcrypt.MinCost)
	require.NoError(t, err)
	ring, err := auth.NewKeyRing([]string{string(hash)})
	require.NoError(t, err)
	return ring
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	t.Run("generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, strings.HasPrefix(seen, "req_"), seen)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
	})
}

func TestGetRequestID_Unknown(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	h := RequestID()(Logging(createTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP request", entry["msg"])
	assert.Equal(t, "/api/v1/scans", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status_code"])
	assert.Equal(t, float64(len("short and stout")), entry["response_size"])
	assert.Equal(t, rr.Header().Get(RequestIDHeader), entry["request_id"])
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := mocks.NewMockRecorder(ctrl)
	rec.EXPECT().HTTPRequest(http.MethodGet, "/api/v1/scans/{id}", http.StatusOK, gomock.Any()).Times(1)

	router := mux.NewRouter()
	router.Use(Metrics(rec))
	router.HandleFunc("/api/v1/scans/{id}", okHandler).Methods(http.MethodGet)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/scans/123e4567", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(createTestLogger(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, buf.String(), "HTTP request panic recovered")
}

func TestAuthentication(t *testing.T) {
	ring := testRing(t)
	h := Authentication(ring, createTestLogger(&bytes.Buffer{}))(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/v1/health", want: http.StatusOK},
		{name: "liveness is public", method: http.MethodGet, path: "/api/v1/liveness", want: http.StatusOK},
		{name: "version is public", method: http.MethodGet, path: "/api/v1/version", want: http.StatusOK},
		{name: "preflight passes", method: http.MethodOptions, path: "/api/v1/scans", want: http.StatusOK},
		{name: "missing key", method: http.MethodGet, path: "/api/v1/scans", want: http.StatusUnauthorized},
		{
			name: "api key header", method: http.MethodGet, path: "/api/v1/scans",
			header: map[string]string{"X-API-Key": testKey}, want: http.StatusOK,
		},
		{
			name: "bearer token", method: http.MethodGet, path: "/api/v1/scans",
			header: map[string]string{"Authorization": "Bearer " + testKey}, want: http.StatusOK,
		},
		{
			name: "wrong key", method: http.MethodGet, path: "/api/v1/scans",
			header: map[string]string{"X-API-Key": "np_zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"}, want: http.StatusUnauthorized,
		},
		{
			name: "basic auth is not accepted", method: http.MethodGet, path: "/api/v1/scans",
			header: map[string]string{"Authorization": "Basic " + testKey}, want: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestMaxBytes(t *testing.T) {
	h := MaxBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too large a body")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestContentType(t *testing.T) {
	h := ContentType()(http.HandlerFunc(okHandler))

	tests := []struct {
		method      string
		contentType string
		want        int
	}{
		{http.MethodPost, "application/json", http.StatusOK},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{http.MethodPost, "", http.StatusOK},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodGet, "text/plain", http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", nil)
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, tt.want, rr.Code, "%s %q", tt.method, tt.contentType)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders()(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	assert.Equal(t, "10.0.0.5", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.6")
	assert.Equal(t, "10.0.0.6", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.8")
	assert.Equal(t, "10.0.0.7", getClientIP(req))
}
