package policyqa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/agent"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/httpx"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/corpus"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/metrics"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/orchestrator"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/registry"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/router"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/synthesis"
)

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Providers are the model endpoints used by each stage.
type Providers struct {
	Router    llm.Provider
	Agents    llm.Provider
	Synthesis llm.Provider
}

// Client answers questions: classify, dispatch to sources, synthesize.
type Client struct {
	config      *config.Config
	registry    *registry.Registry
	router      router.Router
	coordinator *orchestrator.Coordinator
	synthesizer *synthesis.Synthesizer
	metaSource  schema.SourceID
}

// NewClient creates the model clients described by cfg and wires the pipeline.
// Every stage shares one pool of call slots sized by llm.max_concurrency.
func NewClient(cfg *config.Config) (*Client, error) {
	hc := httpx.NewFromConfig(&cfg.HTTP).HTTPClient()
	limiter := llm.NewLimiter(cfg.LLM.MaxConcurrency)

	build := func(stage string, sc config.StageConfig) (llm.Provider, error) {
		p, err := llm.NewLLMProvider(cfg.StageLLM(sc), hc)
		if err != nil {
			return nil, fmt.Errorf("create %s llm provider failed, err: %w", stage, err)
		}
		return llm.Bound(stage, p, limiter, time.Duration(sc.TimeoutMs)*time.Millisecond), nil
	}

	var providers Providers
	var err error
	if providers.Router, err = build("router", cfg.Router); err != nil {
		return nil, err
	}
	if providers.Agents, err = build("agents", cfg.Agents); err != nil {
		return nil, err
	}
	if providers.Synthesis, err = build("synthesis", cfg.Synthesis); err != nil {
		return nil, err
	}
	logger.Infof("policyqa: llm provider=%s model=%s max_concurrency=%d", cfg.LLM.Provider, cfg.LLM.Model, limiter.Size())
	return NewClientWithProviders(cfg, providers)
}

// NewClientWithProviders wires the pipeline around the given providers.
func NewClientWithProviders(cfg *config.Config, providers Providers) (*Client, error) {
	if providers.Router == nil || providers.Agents == nil || providers.Synthesis == nil {
		return nil, errors.New("policyqa: a provider is required for every stage")
	}

	deps := registry.Dependencies{
		Provider: providers.Agents,
		Options: agent.Options{
			Sentinel: cfg.Pipeline.Sentinel,
			NotFound: cfg.Messages.NotFound,
		},
	}
	if needsSplitter(cfg.Sources) {
		splitter, err := corpus.NewTokenSplitter(
			corpus.NewTiktokenTokenizer(cfg.Pipeline.Encoding),
			cfg.Pipeline.ChunkTokens, cfg.Pipeline.ChunkOverlap)
		if err != nil {
			return nil, fmt.Errorf("create token splitter failed, err: %w", err)
		}
		deps.Splitter = splitter
	}

	reg, err := registry.Build(cfg.Sources, deps)
	if err != nil {
		return nil, fmt.Errorf("build source registry failed, err: %w", err)
	}

	meta := schema.NormalizeSourceID(cfg.Pipeline.MetaSource)
	if meta != "" {
		if err := checkMetaSource(reg, meta); err != nil {
			return nil, err
		}
	}

	c := &Client{
		config:      cfg,
		registry:    reg,
		router:      router.NewLLMRouter(providers.Router, reg.Sources(), meta),
		coordinator: orchestrator.NewCoordinator(reg).WithMetaSource(meta),
		synthesizer: synthesis.New(providers.Synthesis, reg.Label, synthesis.Messages{
			Apology:      cfg.Messages.Apology,
			SourceSilent: cfg.Messages.SourceSilent,
		}),
		metaSource: meta,
	}
	logger.Infof("policyqa: %d sources registered (meta=%q)", reg.Len(), meta)
	return c, nil
}

// checkMetaSource requires the meta source to be a registered direct source.
func checkMetaSource(reg *registry.Registry, meta schema.SourceID) error {
	for _, info := range reg.Sources() {
		if info.ID != meta {
			continue
		}
		if info.Variant != config.VariantDirect {
			return fmt.Errorf("meta source %q must use the %s variant, got %q", meta, config.VariantDirect, info.Variant)
		}
		return nil
	}
	return fmt.Errorf("meta source %q is not registered", meta)
}

func needsSplitter(sources []config.SourceConfig) bool {
	for _, s := range sources {
		if s.Split {
			return true
		}
	}
	return false
}

// Sources lists the registered sources.
func (c *Client) Sources() []registry.SourceInfo {
	return c.registry.Sources()
}

// Ask answers one question. It fails only for a blank question; every
// downstream failure degrades to one of the fixed answers.
func (c *Client) Ask(ctx context.Context, question string) (schema.Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return schema.Outcome{}, ErrEmptyQuestion
	}

	requestID := uuid.NewString()
	log := logger.WithContext(map[string]interface{}{"request_id": requestID})
	rec := metrics.NewRequestMetrics(requestID, question)
	defer rec.Log()

	start := time.Now()
	decision := c.router.Route(ctx, question)
	rec.ClassifyLatencyMs = time.Since(start).Milliseconds()
	rec.Intent = decision.Intent.String()
	rec.ClassifierFallback = decision.Fallback
	for _, t := range decision.Targets {
		rec.Targets = append(rec.Targets, string(t))
	}
	log.Infof("policyqa: intent=%s targets=%v fallback=%v", decision.Intent, decision.Targets, decision.Fallback)

	outcome := schema.Outcome{RequestID: requestID, Decision: decision}
	finish := func(answer string, path schema.Path) (schema.Outcome, error) {
		outcome.Answer, outcome.Path = answer, path
		rec.Finish(string(path))
		return outcome, nil
	}

	switch decision.Intent {
	case schema.IntentGreeting:
		return finish(c.config.Messages.Greeting, schema.PathGreeting)
	case schema.IntentOffTopic:
		return finish(c.config.Messages.OffTopic, schema.PathOffTopic)
	case schema.IntentMetaInquiry:
		answer, path := c.answerMeta(ctx, question)
		return finish(answer, path)
	}

	start = time.Now()
	report := c.coordinator.Run(ctx, question, decision)
	rec.DispatchLatencyMs = time.Since(start).Milliseconds()
	rec.Selected = ids(report.Selected)
	rec.Failed = ids(report.Failed)
	for _, r := range report.Results {
		if r.CanAnswer {
			rec.Answered = append(rec.Answered, string(r.Source))
		}
	}
	outcome.Results = report.Results

	if len(report.Results) == 0 {
		log.Warnf("policyqa: no source produced a result (%s)", report)
		return finish(c.config.Messages.NoSources, schema.PathNoSources)
	}

	start = time.Now()
	res := c.synthesizer.Synthesize(ctx, question, report.Results)
	rec.SynthesisLatencyMs = time.Since(start).Milliseconds()
	return finish(res.Answer, res.Path)
}

// answerMeta asks the meta source directly; its answer is returned as is.
func (c *Client) answerMeta(ctx context.Context, question string) (string, schema.Path) {
	if c.metaSource == "" {
		logger.Warnf("policyqa: meta inquiry but no meta source is configured")
		return c.config.Messages.MetaUnavailable, schema.PathDirectMissing
	}
	res, ok := c.coordinator.Invoke(ctx, c.metaSource, question)
	if !ok || !res.CanAnswer || strings.TrimSpace(res.Content) == "" {
		return c.config.Messages.MetaUnavailable, schema.PathDirectMissing
	}
	return res.Content, schema.PathDirect
}

func ids(in []schema.SourceID) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		out = append(out, string(id))
	}
	return out
}
