package schema

import (
	"fmt"
	"strings"
)

// SourceID identifies one answer source (an insurer, or the broker itself).
type SourceID string

func (s SourceID) String() string { return string(s) }

// NormalizeSourceID lower-cases and trims a raw identifier as produced by the
// classifier or written in configuration.
func NormalizeSourceID(raw string) SourceID {
	return SourceID(strings.ToLower(strings.TrimSpace(raw)))
}

// Intent is the classification of a question.
type Intent int

const (
	IntentGeneral Intent = iota
	IntentSpecificSubset
	IntentGreeting
	IntentOffTopic
	IntentMetaInquiry
)

var intentTags = map[Intent]string{
	IntentGeneral:        "general_inquiry",
	IntentSpecificSubset: "specific_inquiry",
	IntentGreeting:       "greeting",
	IntentOffTopic:       "off_topic",
	IntentMetaInquiry:    "meta_inquiry",
}

// String returns the wire tag used by the classifier.
func (i Intent) String() string {
	if tag, ok := intentTags[i]; ok {
		return tag
	}
	return fmt.Sprintf("intent(%d)", int(i))
}

// ParseIntent maps a wire tag back to an Intent. Matching ignores case and
// surrounding whitespace.
func ParseIntent(tag string) (Intent, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for intent, t := range intentTags {
		if t == tag {
			return intent, true
		}
	}
	return IntentGeneral, false
}

// RequiresSources reports whether answering the intent needs the source fan-out.
func (i Intent) RequiresSources() bool {
	return i == IntentGeneral || i == IntentSpecificSubset
}

// RoutingDecision is the classifier's output.
type RoutingDecision struct {
	Intent  Intent     `json:"intent"`
	Targets []SourceID `json:"targets,omitempty"`
	// Fallback is set when the decision is the default produced after a
	// classifier failure.
	Fallback bool   `json:"fallback,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// DefaultDecision is what the classifier returns when it cannot decide.
func DefaultDecision(reason string) RoutingDecision {
	return RoutingDecision{Intent: IntentGeneral, Fallback: true, Reason: reason}
}

// SourceResult is what one source agent produced for a question.
type SourceResult struct {
	Source    SourceID `json:"source"`
	CanAnswer bool     `json:"can_answer"`
	Content   string   `json:"content"`
}

// Path records which branch produced the final answer.
type Path string

const (
	PathGreeting      Path = "greeting"
	PathOffTopic      Path = "off_topic"
	PathDirect        Path = "direct"
	PathDirectMissing Path = "direct_unavailable"
	PathNoSources     Path = "no_sources"
	PathApology       Path = "apology"
	PathSynthesized   Path = "synthesized"
	PathFallback      Path = "fallback"
)

// Outcome is the final answer plus the path that produced it.
type Outcome struct {
	RequestID string          `json:"request_id"`
	Answer    string          `json:"answer"`
	Path      Path            `json:"path"`
	Decision  RoutingDecision `json:"decision"`
	Results   []SourceResult  `json:"results,omitempty"`
}
