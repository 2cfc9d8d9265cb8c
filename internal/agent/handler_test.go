package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broker-copilot/internal/scoring"
)

func newAgentRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(Instrument(NewLocal(scoring.DefaultThresholds), "local")).RegisterRoutes(r)
	return r
}

func TestHandlerServesContract(t *testing.T) {
	r := newAgentRouter()
	body, _ := json.Marshal(sampleRequest())

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, RecommendPath, bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, resp.Code)

	var out RecommendResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Len(t, out.Recommendations, 5)
}

func TestHandlerRejectsEmptyDescription(t *testing.T) {
	r := newAgentRouter()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, AnalyzePath, bytes.NewBufferString(`{"businessDescription": ""}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "validation_error")
}

func TestClientAgainstServedContract(t *testing.T) {
	srv := httptest.NewServer(newAgentRouter())
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	analysis, err := c.Analyze(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.False(t, analysis.NeedsClarifiers)

	rec, err := c.Recommend(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "tools", rec.Recommendations[0].Key)
}
