package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Check(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		register func(h *HealthChecker)
		want     string
	}{
		{
			name:     "no dependencies",
			register: func(h *HealthChecker) {},
			want:     StatusHealthy,
		},
		{
			name: "all healthy",
			register: func(h *HealthChecker) {
				h.Register("consistency", true, ok)
				h.Register("snapshot_store", false, ok)
			},
			want: StatusHealthy,
		},
		{
			name: "optional dependency down",
			register: func(h *HealthChecker) {
				h.Register("consistency", true, ok)
				h.Register("snapshot_store", false, fail)
			},
			want: StatusDegraded,
		},
		{
			name: "critical dependency down",
			register: func(h *HealthChecker) {
				h.Register("consistency", true, fail)
				h.Register("snapshot_store", false, fail)
			},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("test")
			tt.register(h)

			status := h.Check(context.Background())
			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, "test", status.Version)
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	h := NewHealthChecker("test")
	h.Register("consistency", true, func(context.Context) error { return errors.New("2 violations") })

	serveMux := http.NewServeMux()
	RegisterHealthRoutes(serveMux, h)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "2 violations", status.Dependencies["consistency"].Message)
}
