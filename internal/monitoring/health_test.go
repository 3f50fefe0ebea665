package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_StartsDegradedBeforeFirstCycle(t *testing.T) {
	h := NewHealthChecker()
	status := h.Status()
	assert.Equal(t, "degraded", status.Status, "no cycle has ever been recorded, so lastCycle is the zero time")
}

func TestHealthChecker_HealthyAfterRecordCycle(t *testing.T) {
	h := NewHealthChecker()
	h.RecordCycle(time.Now())
	assert.Equal(t, "healthy", h.Status().Status)
}

func TestHealthChecker_HaltedWhenKillSwitchOn(t *testing.T) {
	h := NewHealthChecker()
	h.RecordCycle(time.Now())
	h.SetKillSwitch(true)
	assert.Equal(t, "halted", h.Status().Status)
}

func TestHealthChecker_UnhealthyWhenErrorsPresent(t *testing.T) {
	h := NewHealthChecker()
	h.RecordCycle(time.Now())
	h.AddError("boom")
	assert.Equal(t, "unhealthy", h.Status().Status)
}

func TestHealthChecker_KillSwitchTakesPriorityOverErrorsInStatus(t *testing.T) {
	h := NewHealthChecker()
	h.SetKillSwitch(true)
	h.AddError("boom")
	assert.Equal(t, "halted", h.Status().Status, "kill switch is checked first in the switch statement")
}

func TestHealthChecker_AddErrorCapsAtTen(t *testing.T) {
	h := NewHealthChecker()
	for i := 0; i < 15; i++ {
		h.AddError("err")
	}
	assert.Len(t, h.Status().Errors, 10)
}

func TestHealthChecker_ServeHTTPWritesJSONStatus(t *testing.T) {
	h := NewHealthChecker()
	h.RecordCycle(time.Now())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
}

func TestHealthChecker_ServeHTTPReturns503WhenHalted(t *testing.T) {
	h := NewHealthChecker()
	h.SetKillSwitch(true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
