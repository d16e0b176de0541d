package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	require.NoError(t, unmarshalBody(resp, &health))

	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "healthy", health.Components["search"].Status)
	assert.NotEmpty(t, health.Components["database"].Latency)
}

func TestHealthCheck_NoSearchIndex(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.services.SearchIndex = nil

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	require.NoError(t, unmarshalBody(resp, &health))

	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Components["search"].Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
}
