package agent

import (
	"context"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/corpus"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

// DirectAnswerAgent answers from its document directly instead of extracting
// a passage. Its result is always marked answerable when the call succeeds.
type DirectAnswerAgent struct {
	id       schema.SourceID
	label    string
	document *corpus.Blob
	provider llm.Provider
}

func NewDirectAnswerAgent(id schema.SourceID, label string, document *corpus.Blob, provider llm.Provider) *DirectAnswerAgent {
	return &DirectAnswerAgent{id: id, label: label, document: document, provider: provider}
}

func (a *DirectAnswerAgent) ID() schema.SourceID { return a.id }

func (a *DirectAnswerAgent) Label() string { return a.label }

func (a *DirectAnswerAgent) Analyze(ctx context.Context, question string) (schema.SourceResult, error) {
	text, err := a.document.Load(ctx)
	if err != nil {
		logger.Warnf("agent[%s]: corpus unavailable: %v", a.id, err)
		return unavailable(a.id, a.label, err)
	}
	reply, err := a.provider.GenerateCompletion(ctx, directPrompt(a.label, text, question))
	if err != nil {
		logger.Warnf("agent[%s]: model call failed: %v", a.id, err)
		return analysisFailed(a.id, a.label, err)
	}
	return schema.SourceResult{Source: a.id, CanAnswer: true, Content: reply}, nil
}
