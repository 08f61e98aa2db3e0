package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/agent"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/corpus"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

var (
	ErrUnknownVariant = errors.New("unknown source variant")
	ErrInvalidSource  = errors.New("invalid source declaration")
)

// Dependencies are handed to every factory.
type Dependencies struct {
	Provider llm.Provider
	Options  agent.Options
	// Splitter is required only by multi_chunk sources declared with split.
	Splitter *corpus.TokenSplitter
}

// Factory builds the agent for one declaration. Factories must not read corpora.
type Factory func(src config.SourceConfig, id schema.SourceID, deps Dependencies) (agent.Agent, error)

var factories = map[string]Factory{
	config.VariantSingle:     newSingle,
	config.VariantMultiChunk: newMultiChunk,
	config.VariantDirect:     newDirect,
}

func newSingle(src config.SourceConfig, id schema.SourceID, deps Dependencies) (agent.Agent, error) {
	return agent.NewSingleCorpusAgent(id, src.DisplayLabel(), corpus.NewBlob(src.Path), deps.Provider, deps.Options), nil
}

func newDirect(src config.SourceConfig, id schema.SourceID, deps Dependencies) (agent.Agent, error) {
	return agent.NewDirectAnswerAgent(id, src.DisplayLabel(), corpus.NewBlob(src.Path), deps.Provider), nil
}

func newMultiChunk(src config.SourceConfig, id schema.SourceID, deps Dependencies) (agent.Agent, error) {
	var set corpus.ChunkSet
	switch {
	case len(src.Paths) > 0:
		set = corpus.NewFileSet(src.Paths)
	case strings.TrimSpace(src.Dir) != "":
		set = corpus.NewDirSet(src.Dir)
	case src.Split:
		if deps.Splitter == nil {
			return nil, fmt.Errorf("%w: source %q splits its document but no splitter is configured", ErrInvalidSource, src.ID)
		}
		set = corpus.NewSplitSet(src.Path, deps.Splitter)
	default:
		return nil, fmt.Errorf("%w: source %q has no chunk location", ErrInvalidSource, src.ID)
	}
	return agent.NewMultiChunkAgent(id, src.DisplayLabel(), set, deps.Provider, deps.Options), nil
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	ID      schema.SourceID `json:"id"`
	Label   string          `json:"label"`
	Variant string          `json:"variant"`
}

// Registry maps source ids to their agents. It is immutable after Build and
// safe for concurrent use.
type Registry struct {
	agents map[schema.SourceID]agent.Agent
	infos  []SourceInfo
}

// Build constructs every agent from its declaration. Any malformed declaration
// fails the whole build; no corpus is read.
func Build(sources []config.SourceConfig, deps Dependencies) (*Registry, error) {
	if deps.Provider == nil {
		return nil, errors.New("registry: llm provider is required")
	}
	r := &Registry{agents: make(map[schema.SourceID]agent.Agent, len(sources))}
	for i, src := range sources {
		id := schema.NormalizeSourceID(src.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: sources[%d] has no id", ErrInvalidSource, i)
		}
		if _, dup := r.agents[id]; dup {
			return nil, fmt.Errorf("%w: duplicate source id %q", ErrInvalidSource, id)
		}
		variant := strings.ToLower(strings.TrimSpace(src.Variant))
		factory, ok := factories[variant]
		if !ok {
			return nil, fmt.Errorf("%w %q for source %q", ErrUnknownVariant, src.Variant, id)
		}
		if err := config.CheckSource(src); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
		}
		a, err := factory(src, id, deps)
		if err != nil {
			return nil, err
		}
		r.agents[id] = a
		r.infos = append(r.infos, SourceInfo{ID: id, Label: a.Label(), Variant: variant})
	}
	return r, nil
}

// Get returns the agent registered under id.
func (r *Registry) Get(id schema.SourceID) (agent.Agent, bool) {
	a, ok := r.agents[schema.NormalizeSourceID(string(id))]
	return a, ok
}

// IDs returns every registered id in declaration order.
func (r *Registry) IDs() []schema.SourceID {
	ids := make([]schema.SourceID, 0, len(r.infos))
	for _, info := range r.infos {
		ids = append(ids, info.ID)
	}
	return ids
}

// Sources describes every registered source in declaration order.
func (r *Registry) Sources() []SourceInfo {
	return append([]SourceInfo(nil), r.infos...)
}

// Label returns the display label for id, or the id itself when unknown.
func (r *Registry) Label(id schema.SourceID) string {
	if a, ok := r.Get(id); ok {
		return a.Label()
	}
	return string(id)
}

// Len returns the number of registered sources.
func (r *Registry) Len() int { return len(r.infos) }
