// Package metrics exposes prometheus collectors for the chat engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BTreeMap/CareBear/internal/models"
)

// Metrics holds the service collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turns        *prometheus.CounterVec
	moods        *prometheus.CounterVec
	crises       prometheus.Counter
	resumes      prometheus.Counter
	genaiReplies *prometheus.CounterVec
	transcripts  *prometheus.CounterVec
	pruned       prometheus.Counter
}

// New creates the collectors and registers them, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carebear_turns_total",
			Help: "Turns answered, by response kind.",
		}, []string{"kind"}),
		moods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carebear_mood_total",
			Help: "Classified moods of inbound messages.",
		}, []string{"mood"}),
		crises: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carebear_crisis_detections_total",
			Help: "Inbound messages that matched a crisis rule.",
		}),
		resumes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carebear_resumes_total",
			Help: "Sessions resumed out of crisis mode.",
		}),
		genaiReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carebear_genai_replies_total",
			Help: "Generative backend outcomes for conversational turns.",
		}, []string{"outcome"}),
		transcripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carebear_transcript_writes_total",
			Help: "Transcript writes, by outcome.",
		}, []string{"outcome"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carebear_sessions_pruned_total",
			Help: "Idle sessions removed by the pruning job.",
		}),
	}
	m.registry.MustRegister(
		m.turns, m.moods, m.crises, m.resumes, m.genaiReplies, m.transcripts, m.pruned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTurn records one answered turn.
func (m *Metrics) ObserveTurn(mood models.MoodLabel, kind models.ResponseKind, crisis bool) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(string(kind)).Inc()
	m.moods.WithLabelValues(string(mood)).Inc()
	if crisis {
		m.crises.Inc()
	}
}

// ObserveResume records a session leaving crisis mode.
func (m *Metrics) ObserveResume() {
	if m == nil {
		return
	}
	m.resumes.Inc()
}

// ObserveGenAI records whether the generative backend produced the reply ("ok")
// or the engine reply was used instead ("fallback").
func (m *Metrics) ObserveGenAI(outcome string) {
	if m == nil {
		return
	}
	m.genaiReplies.WithLabelValues(outcome).Inc()
}

// ObserveTranscript records a transcript write result.
func (m *Metrics) ObserveTranscript(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.transcripts.WithLabelValues(outcome).Inc()
}

// AddPruned records sessions removed by idle pruning.
func (m *Metrics) AddPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
