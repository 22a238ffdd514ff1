package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("file", "insert", time.Now(), nil)
	m.ObserveSearch("file", 3)
	m.IncCollision()
	m.IncRetry()
	m.IncDeleteConflict()
}

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("kv", "insert", time.Now(), nil)
	m.ObserveOperation("kv", "insert", time.Now(), errors.New("boom"))
	m.ObserveOperation("kv", "insert", time.Now(), nil)

	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("kv", "insert", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("kv", "insert", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.IncCollision()
	m.IncCollision()
	m.IncRetry()
	m.IncDeleteConflict()
	if got := testutil.ToFloat64(m.InsertCollisionsTotal); got != 2 {
		t.Errorf("collisions = %v", got)
	}
	if got := testutil.ToFloat64(m.InsertRetriesTotal); got != 1 {
		t.Errorf("retries = %v", got)
	}
	if got := testutil.ToFloat64(m.DeleteConflictsTotal); got != 1 {
		t.Errorf("delete conflicts = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.IncCollision()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "notelog_kv_insert_collisions_total 1") {
		t.Errorf("collision counter missing from exposition:\n%s", w.Body.String())
	}
}
