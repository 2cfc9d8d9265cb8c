package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("ready"))
	IncRun("ready")
	assert.Equal(t, before+1, testutil.ToFloat64(runsTotal.WithLabelValues("ready")))

	beforeFault := testutil.ToFloat64(scoringFaultsTotal.WithLabelValues("pl"))
	IncScoringFault("pl")
	assert.Equal(t, beforeFault+1, testutil.ToFloat64(scoringFaultsTotal.WithLabelValues("pl")))
}

func TestHandlerRendersSeries(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncPackToggle("added")
	ObserveAgentRequest("analyze", "ok", 0.2)

	r := gin.New()
	r.GET("/metrics", Handler())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, `copilot_pack_toggles_total{action="added"}`)
	assert.Contains(t, body, `copilot_agent_request_duration_seconds_bucket{op="analyze"`)
}
