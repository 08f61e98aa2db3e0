package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

// Messages are the fixed texts the synthesizer may emit.
type Messages struct {
	// Apology is returned when no source could answer.
	Apology string
	// SourceSilent stands in for a non-answering source's content in the model input.
	SourceSilent string
}

// Result is a final answer and how it was produced.
type Result struct {
	Answer string
	Path   schema.Path
}

// Synthesizer merges source results into one answer.
type Synthesizer struct {
	provider llm.Provider
	label    func(schema.SourceID) string
	messages Messages
}

// New creates a synthesizer. label maps a source id to its display label; nil
// uses the id.
func New(provider llm.Provider, label func(schema.SourceID) string, messages Messages) *Synthesizer {
	if label == nil {
		label = func(id schema.SourceID) string { return string(id) }
	}
	return &Synthesizer{provider: provider, label: label, messages: messages}
}

// Synthesize never fails. With nothing answerable it returns the apology
// without calling the model; when the model call fails it falls back to
// concatenating the answerable contents.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, results []schema.SourceResult) Result {
	if !anyAnswerable(results) {
		logger.Warnf("synthesis: no source could answer (%d results)", len(results))
		return Result{Answer: s.messages.Apology, Path: schema.PathApology}
	}

	prompt := synthesisPrompt(question, s.FormatBlocks(results))
	answer, err := s.provider.GenerateCompletion(ctx, prompt)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		logger.Errorf("synthesis: model call failed, falling back to concatenation: %v", err)
		return Result{Answer: Fallback(results), Path: schema.PathFallback}
	}
	logger.Infof("synthesis: synthesized answer from %d results", len(results))
	return Result{Answer: strings.TrimSpace(answer), Path: schema.PathSynthesized}
}

// FormatBlocks renders every result, answerable or not, as a block labelled
// with its source.
func (s *Synthesizer) FormatBlocks(results []schema.SourceResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		content := r.Content
		if !r.CanAnswer {
			content = s.messages.SourceSilent
		}
		blocks = append(blocks, fmt.Sprintf("--- Information de %s ---\n%s\n", s.label(r.Source), content))
	}
	return strings.Join(blocks, "\n")
}

// Fallback joins the answerable contents with blank lines, in input order.
func Fallback(results []schema.SourceResult) string {
	var parts []string
	for _, r := range results {
		if r.CanAnswer {
			parts = append(parts, r.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func anyAnswerable(results []schema.SourceResult) bool {
	for _, r := range results {
		if r.CanAnswer {
			return true
		}
	}
	return false
}
