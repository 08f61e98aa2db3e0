package metrics

import (
	"encoding/json"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
)

// RequestMetrics records one question's trip through the pipeline.
type RequestMetrics struct {
	RequestID string    `json:"request_id"`
	Question  string    `json:"question"`
	Timestamp time.Time `json:"timestamp"`

	// classification
	Intent             string   `json:"intent"`
	ClassifierFallback bool     `json:"classifier_fallback"`
	Targets            []string `json:"targets,omitempty"`
	ClassifyLatencyMs  int64    `json:"classify_latency_ms"`

	// dispatch
	Selected          []string `json:"selected,omitempty"`
	Answered          []string `json:"answered,omitempty"`
	Failed            []string `json:"failed,omitempty"`
	DispatchLatencyMs int64    `json:"dispatch_latency_ms,omitempty"`

	// synthesis
	Path               string `json:"path"`
	SynthesisLatencyMs int64  `json:"synthesis_latency_ms,omitempty"`

	TotalLatencyMs int64  `json:"total_latency_ms"`
	ErrorMsg       string `json:"error_msg,omitempty"`
}

// NewRequestMetrics creates a new record stamped with the current time.
func NewRequestMetrics(requestID, question string) *RequestMetrics {
	return &RequestMetrics{
		RequestID: requestID,
		Question:  question,
		Timestamp: time.Now(),
	}
}

// Finish sets the total latency and the answer path, and bumps the path counter.
func (m *RequestMetrics) Finish(path string) {
	m.Path = path
	m.TotalLatencyMs = time.Since(m.Timestamp).Milliseconds()
	IncAnswerPath(path)
}

// Log writes the record as one JSON line.
func (m *RequestMetrics) Log() {
	if data, err := json.Marshal(m); err == nil {
		logger.Infof("[POLICYQA_METRICS] %s", string(data))
	}
}
