package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/corpus"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/metrics"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

// MultiChunkAgent analyzes each chunk of a multi-part corpus concurrently and
// merges the relevant passages. Chunks fail independently.
type MultiChunkAgent struct {
	id       schema.SourceID
	label    string
	chunks   corpus.ChunkSet
	provider llm.Provider
	opts     Options
}

func NewMultiChunkAgent(id schema.SourceID, label string, chunks corpus.ChunkSet, provider llm.Provider, opts Options) *MultiChunkAgent {
	return &MultiChunkAgent{id: id, label: label, chunks: chunks, provider: provider, opts: opts}
}

func (a *MultiChunkAgent) ID() schema.SourceID { return a.id }

func (a *MultiChunkAgent) Label() string { return a.label }

type chunkOutcome int

const (
	chunkFailed chunkOutcome = iota
	chunkEmpty
	chunkAnswered
)

type chunkResult struct {
	outcome chunkOutcome
	line    string
	err     error
}

func (a *MultiChunkAgent) Analyze(ctx context.Context, question string) (schema.SourceResult, error) {
	chunks, err := a.chunks.Chunks(ctx)
	if err != nil {
		logger.Warnf("agent[%s]: chunks unavailable: %v", a.id, err)
		return unavailable(a.id, a.label, err)
	}
	if len(chunks) == 0 {
		return unavailable(a.id, a.label, fmt.Errorf("%w: %s has no chunks", corpus.ErrUnavailable, a.chunks.Describe()))
	}

	results := make([]chunkResult, len(chunks))
	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, c corpus.Chunk) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = chunkResult{outcome: chunkFailed, err: fmt.Errorf("panic: %v", r)}
				}
			}()
			results[i] = a.analyzeChunk(ctx, c, question)
		}(i, c)
	}
	wg.Wait()

	var lines []string
	var errs []error
	for i, r := range results {
		switch r.outcome {
		case chunkAnswered:
			metrics.IncChunk(string(a.id), "answered")
			lines = append(lines, r.line)
		case chunkEmpty:
			metrics.IncChunk(string(a.id), "empty")
		default:
			metrics.IncChunk(string(a.id), "failed")
			logger.Warnf("agent[%s]: chunk %s failed: %v", a.id, chunks[i].Label, r.err)
			errs = append(errs, r.err)
		}
	}
	logger.Debugf("agent[%s]: %d chunks, %d relevant, %d failed", a.id, len(chunks), len(lines), len(errs))

	if len(lines) > 0 {
		return schema.SourceResult{
			Source:    a.id,
			CanAnswer: true,
			Content:   fmt.Sprintf("%s :\n%s", a.label, strings.Join(lines, "\n")),
		}, nil
	}
	if len(errs) == len(chunks) {
		return analysisFailed(a.id, a.label, errors.Join(errs...))
	}
	return schema.SourceResult{Source: a.id, CanAnswer: false, Content: a.opts.NotFound}, nil
}

func (a *MultiChunkAgent) analyzeChunk(ctx context.Context, c corpus.Chunk, question string) chunkResult {
	text, err := c.Text(ctx)
	if err != nil {
		return chunkResult{outcome: chunkFailed, err: err}
	}
	reply, err := a.provider.GenerateCompletion(ctx, extractPrompt(a.label, a.opts.Sentinel, text, question))
	if err != nil {
		return chunkResult{outcome: chunkFailed, err: err}
	}
	if IsSentinel(reply, a.opts.Sentinel) {
		return chunkResult{outcome: chunkEmpty}
	}
	return chunkResult{outcome: chunkAnswered, line: fmt.Sprintf("Source (%s): %s", c.Label, reply)}
}
