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

func TestRecorder_Counters(t *testing.T) {
	t.Parallel()

	r := New()
	r.RecordMessage(OutcomeChat)
	r.RecordMessage(OutcomeChat)
	r.RecordMessage(OutcomeFiltered)
	r.RecordCompletion(2*time.Second, 10, 5, nil)
	r.RecordCompletion(time.Second, 0, 0, errors.New("down"))
	r.RecordFragment(nil)
	r.RecordFragment(nil)
	r.RecordFragment(errors.New("429"))

	if got := testutil.ToFloat64(r.messages.WithLabelValues(OutcomeChat)); got != 2 {
		t.Errorf("chat messages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.messages.WithLabelValues(OutcomeFiltered)); got != 1 {
		t.Errorf("filtered messages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.completions.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok completions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.completions.WithLabelValues("error")); got != 1 {
		t.Errorf("error completions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.tokens.WithLabelValues("prompt")); got != 10 {
		t.Errorf("prompt tokens = %v, want 10", got)
	}
	if got := testutil.ToFloat64(r.fragments); got != 2 {
		t.Errorf("fragments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.sendErrors); got != 1 {
		t.Errorf("send errors = %v, want 1", got)
	}
}

func TestRecorder_Gauges(t *testing.T) {
	t.Parallel()

	r := New()
	done := r.TrackInFlight()
	if got := testutil.ToFloat64(r.inFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(r.inFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}

	r.SetBackendUp(true)
	if got := testutil.ToFloat64(r.backendUp); got != 1 {
		t.Errorf("backend up = %v, want 1", got)
	}
	r.SetBackendUp(false)
	if got := testutil.ToFloat64(r.backendUp); got != 0 {
		t.Errorf("backend up = %v, want 0", got)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.RecordMessage(OutcomeChat)
	r.RecordCompletion(time.Second, 1, 1, nil)
	r.RecordFragment(nil)
	r.SetBackendUp(true)
	r.RegisterContextGauge(func() float64 { return 1 })
	r.TrackInFlight()()
}

func TestRecorder_Handler(t *testing.T) {
	t.Parallel()

	r := New()
	r.RegisterContextGauge(func() float64 { return 3 })
	r.RecordMessage(OutcomeReset)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`llamacord_messages_total{outcome="reset"} 1`,
		"llamacord_history_contexts 3",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
