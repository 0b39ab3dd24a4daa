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

func TestObserveStep(t *testing.T) {
	m := New()
	m.ObserveStep(2.5)
	m.ObserveStep(1.5)

	if got := testutil.ToFloat64(m.Iterations); got != 2 {
		t.Errorf("expected 2 iterations, got %f", got)
	}
	if got := testutil.ToFloat64(m.Loss); got != 1.5 {
		t.Errorf("expected loss 1.5, got %f", got)
	}
}

func TestObserveCheckpoint(t *testing.T) {
	m := New()
	m.ObserveCheckpoint(10*time.Millisecond, nil)
	m.ObserveCheckpoint(20*time.Millisecond, errors.New("disk full"))
	m.ObserveCheckpoint(5*time.Millisecond, nil)

	if got := testutil.ToFloat64(m.Checkpoints.WithLabelValues(ResultSuccess)); got != 2 {
		t.Errorf("expected 2 successes, got %f", got)
	}
	if got := testutil.ToFloat64(m.Checkpoints.WithLabelValues(ResultFailure)); got != 1 {
		t.Errorf("expected 1 failure, got %f", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveStep(1)
	m.ObserveCheckpoint(time.Second, nil)
	m.SetEpoch(3)
	m.ObserveQuery("hit") // must not panic
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetEpoch(4)
	m.ObserveQuery("hit")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"w2v_train_epoch 4", `w2v_queries_total{outcome="hit"} 1`, "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}
