package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	llmLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policyqa_llm_call_latency_ms",
		Help:    "Latency of model calls in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
	}, []string{"stage", "outcome"})

	agentCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyqa_agent_calls_total",
		Help: "Source agent invocations by outcome (answered/empty/failed/panic)",
	}, []string{"source", "outcome"})

	agentLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policyqa_agent_latency_ms",
		Help:    "Latency of source agent invocations in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
	}, []string{"source"})

	chunkCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyqa_chunk_calls_total",
		Help: "Per-chunk analyses of multi-chunk sources by outcome",
	}, []string{"source", "outcome"})

	classification = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyqa_classification_total",
		Help: "Classifier decisions by intent; fallback=true when the default decision was used",
	}, []string{"intent", "fallback"})

	dispatchFanout = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "policyqa_dispatch_fanout",
		Help:    "Number of sources dispatched per question",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 12},
	})

	answerPath = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policyqa_answer_path_total",
		Help: "Final answers by producing path (synthesized/fallback/apology/...)",
	}, []string{"path"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// Register adds the pipeline collectors to the default registry. It is safe to
// call more than once.
func Register() {
	ensureRegistered()
}

// ObserveLLMCall records one model call.
func ObserveLLMCall(stage, outcome string, start time.Time) {
	ensureRegistered()
	llmLatency.WithLabelValues(stage, outcome).Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveAgent records one source agent invocation.
func ObserveAgent(source, outcome string, start time.Time) {
	ensureRegistered()
	agentCalls.WithLabelValues(source, outcome).Inc()
	agentLatency.WithLabelValues(source).Observe(float64(time.Since(start).Milliseconds()))
}

// IncChunk records one chunk analysis.
func IncChunk(source, outcome string) {
	ensureRegistered()
	chunkCalls.WithLabelValues(source, outcome).Inc()
}

// IncClassification records a classifier decision.
func IncClassification(intent string, fallback bool) {
	ensureRegistered()
	fb := "false"
	if fallback {
		fb = "true"
	}
	classification.WithLabelValues(intent, fb).Inc()
}

// ObserveDispatch records how many sources a question was sent to.
func ObserveDispatch(n int) {
	ensureRegistered()
	dispatchFanout.Observe(float64(n))
}

// IncAnswerPath records the path that produced a final answer.
func IncAnswerPath(path string) {
	ensureRegistered()
	answerPath.WithLabelValues(path).Inc()
}

// Collectors exposes all collectors for external registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		llmLatency, agentCalls, agentLatency, chunkCalls, classification, dispatchFanout, answerPath,
	}
}
