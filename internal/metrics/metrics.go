// Package metrics exposes Prometheus collectors for message routing and
// inference. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "llamacord"

// Service is the AppContext service name of the process Recorder.
const Service = "metrics"

// Message outcomes.
const (
	OutcomeFiltered = "filtered"
	OutcomeChat     = "chat"
	OutcomeReset    = "reset"
	OutcomeHistory  = "history"
	OutcomeFailed   = "failed"
	OutcomeDropped  = "dropped"
)

// Recorder owns a private registry and the collectors registered in it.
type Recorder struct {
	registry *prometheus.Registry

	messages    *prometheus.CounterVec
	completions *prometheus.CounterVec
	latency     prometheus.Histogram
	tokens      *prometheus.CounterVec
	fragments   prometheus.Counter
	sendErrors  prometheus.Counter
	inFlight    prometheus.Gauge
	backendUp   prometheus.Gauge
}

// New creates a Recorder with Go runtime and process collectors included.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by routing outcome.",
		}, []string{"outcome"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Inference requests by result.",
		}, []string{"result"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Inference request latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by the backend.",
		}, []string{"kind"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_sent_total",
			Help:      "Reply fragments delivered to channels.",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Reply fragments the channel failed to deliver.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_in_flight",
			Help:      "Messages currently being processed.",
		}),
		backendUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "1 when the last inference backend probe succeeded.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.messages, r.completions, r.latency, r.tokens,
		r.fragments, r.sendErrors, r.inFlight, r.backendUp,
	)
	return r
}

// Registry returns the registry backing this Recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RegisterContextGauge exposes the number of live conversation contexts,
// computed by count at scrape time.
func (r *Recorder) RegisterContextGauge(count func() float64) {
	if r == nil {
		return
	}
	r.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_contexts",
		Help:      "Live conversation contexts.",
	}, count))
}

// RecordMessage counts an inbound message with its outcome.
func (r *Recorder) RecordMessage(outcome string) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(outcome).Inc()
}

// RecordCompletion records an inference request and its token usage.
func (r *Recorder) RecordCompletion(latency time.Duration, promptTokens, completionTokens int, err error) {
	if r == nil {
		return
	}
	r.latency.Observe(latency.Seconds())
	if err != nil {
		r.completions.WithLabelValues("error").Inc()
		return
	}
	r.completions.WithLabelValues("ok").Inc()
	r.tokens.WithLabelValues("prompt").Add(float64(promptTokens))
	r.tokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// RecordFragment counts a delivered fragment, or a failed delivery.
func (r *Recorder) RecordFragment(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.sendErrors.Inc()
		return
	}
	r.fragments.Inc()
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (r *Recorder) TrackInFlight() func() {
	if r == nil {
		return func() {}
	}
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// SetBackendUp records the result of a backend probe.
func (r *Recorder) SetBackendUp(up bool) {
	if r == nil {
		return
	}
	if up {
		r.backendUp.Set(1)
		return
	}
	r.backendUp.Set(0)
}
