package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staple-duck/snh/config"
	"github.com/staple-duck/snh/services"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Environment = config.EnvTest
	cfg.Store.Driver = config.DriverMemory
	if mutate != nil {
		mutate(cfg)
	}

	container, err := services.NewServiceFactory(cfg).
		WithLogOutput(io.Discard).
		CreateServices(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	return NewServer(cfg, container)
}

func do(srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health services.SystemHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, services.HealthStatusHealthy, health.Status)
	assert.Equal(t, services.Version, health.Version)
	assert.Contains(t, health.Components, "store")
}

func TestServer_TreeRoutesUnderPrefix(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(srv, http.MethodPost, "/api/tree", `{"label":"root"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(srv, http.MethodGet, "/api/tree", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var forest []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forest))
	require.Len(t, forest, 1)
	assert.Equal(t, "root", forest[0]["label"])

	rec = do(srv, http.MethodGet, "/tree", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_EmptyPrefix(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) { cfg.Server.Prefix = "" })

	rec := do(srv, http.MethodGet, "/tree", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/api/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusNotFound), body["statusCode"])
	assert.Equal(t, "Cannot GET /api/nowhere", body["message"])
}

func TestServer_CORS(t *testing.T) {
	t.Run("wildcard when no origins configured", func(t *testing.T) {
		srv := newTestServer(t, nil)

		rec := do(srv, http.MethodOptions, "/api/tree", "", map[string]string{"Origin": "http://example.com"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	})

	t.Run("echoes allowed origin", func(t *testing.T) {
		srv := newTestServer(t, func(cfg *config.Config) {
			cfg.Server.CORSOrigins = []string{"http://allowed.test"}
		})

		rec := do(srv, http.MethodGet, "/api/tree", "", map[string]string{"Origin": "http://allowed.test"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://allowed.test", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

		rec = do(srv, http.MethodGet, "/api/tree", "", map[string]string{"Origin": "http://other.test"})
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, nil)

	do(srv, http.MethodPost, "/api/tree", `{"label":"root"}`, nil)
	do(srv, http.MethodGet, "/api/tree", "", nil)

	rec := do(srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `tree_operations_total{operation="create",outcome="ok"} 1`)
	assert.Contains(t, body, `http_requests_total{method="POST",route="/api/tree",status="201"} 1`)
	assert.Contains(t, body, "tree_nodes_last_listed 1")
}

func TestServer_MetricsDisabled(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) { cfg.Metrics.Enabled = false })

	rec := do(srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
