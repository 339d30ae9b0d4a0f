package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestToolCall(t *testing.T) {
	before := testutil.ToFloat64(ToolCallsTotal.WithLabelValues("weather", "error"))
	ToolCall("weather", errors.New("timeout"))
	ToolCall("weather", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(ToolCallsTotal.WithLabelValues("weather", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(ToolCallsTotal.WithLabelValues("weather", "ok")), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveSince("total", time.Now())
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentchat_retrieval_seconds")
}
