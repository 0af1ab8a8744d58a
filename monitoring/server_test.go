package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpsServer_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"redis reachable", nil, http.StatusOK, "healthy"},
		{"redis down", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			if tt.pingErr != nil {
				mock.ExpectPing().SetErr(tt.pingErr)
			} else {
				mock.ExpectPing().SetVal("PONG")
			}

			srv := NewOpsServer("0", db)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["status"])
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOpsServer_Health_MemoryStore(t *testing.T) {
	srv := NewOpsServer("0", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memory")
}

func TestOpsServer_Metrics(t *testing.T) {
	m := NewMonitor()
	m.TrackOperation("join", "success")
	m.TrackRotation("pass")
	m.SetQueueLength("station-ops", 3)

	srv := NewOpsServer("0", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `aux_operations_total{operation="join",status="success"}`)
	assert.Contains(t, body, `aux_rotations_total{reason="pass"}`)
	assert.Contains(t, body, `aux_queue_length{station_id="station-ops"} 3`)
}
