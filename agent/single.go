package agent

import (
	"context"
	"fmt"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/corpus"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

// SingleCorpusAgent searches one document with one model call.
type SingleCorpusAgent struct {
	id       schema.SourceID
	label    string
	document *corpus.Blob
	provider llm.Provider
	opts     Options
}

func NewSingleCorpusAgent(id schema.SourceID, label string, document *corpus.Blob, provider llm.Provider, opts Options) *SingleCorpusAgent {
	return &SingleCorpusAgent{id: id, label: label, document: document, provider: provider, opts: opts}
}

func (a *SingleCorpusAgent) ID() schema.SourceID { return a.id }

func (a *SingleCorpusAgent) Label() string { return a.label }

func (a *SingleCorpusAgent) Analyze(ctx context.Context, question string) (schema.SourceResult, error) {
	text, err := a.document.Load(ctx)
	if err != nil {
		logger.Warnf("agent[%s]: corpus unavailable: %v", a.id, err)
		return unavailable(a.id, a.label, err)
	}

	reply, err := a.provider.GenerateCompletion(ctx, extractPrompt(a.label, a.opts.Sentinel, text, question))
	if err != nil {
		logger.Warnf("agent[%s]: model call failed: %v", a.id, err)
		return analysisFailed(a.id, a.label, err)
	}

	if IsSentinel(reply, a.opts.Sentinel) {
		logger.Debugf("agent[%s]: nothing relevant", a.id)
		return schema.SourceResult{Source: a.id, CanAnswer: false, Content: a.opts.NotFound}, nil
	}
	logger.Debugf("agent[%s]: found a passage (%d chars)", a.id, len(reply))
	return schema.SourceResult{
		Source:    a.id,
		CanAnswer: true,
		Content:   fmt.Sprintf("%s : %s", a.label, reply),
	}, nil
}
