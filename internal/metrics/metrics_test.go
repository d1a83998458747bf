package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("config", "create", OutcomeOK, 5*time.Millisecond)
	m.ObserveOperation("config", "create", OutcomeOK, time.Millisecond)
	m.ObserveOperation("config", "create", OutcomeError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("config", "create", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("config", "create", OutcomeError)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Compensations.WithLabelValues("blob", OutcomeOK).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Compensations.WithLabelValues("blob", OutcomeOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Compensations.WithLabelValues("blob", OutcomeOK)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/environments", http.StatusOK, time.Millisecond)
	m.ReconcileRuns.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rednight_http_requests_total{method="GET",route="/environments",status="200"} 1`)
	assert.Contains(t, string(body), "rednight_reconcile_runs_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestObserveRPC(t *testing.T) {
	m := New()
	m.ObserveRPC("/grpc.health.v1.Health/Check", "OK", time.Millisecond)
	m.ObserveRPC("/grpc.health.v1.Health/Check", "Unavailable", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCsTotal.WithLabelValues("/grpc.health.v1.Health/Check", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCsTotal.WithLabelValues("/grpc.health.v1.Health/Check", "Unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RPCDuration))
}
