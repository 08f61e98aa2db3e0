package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/agent"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/metrics"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

// Catalog is the part of the registry the coordinator needs.
type Catalog interface {
	Get(id schema.SourceID) (agent.Agent, bool)
	IDs() []schema.SourceID
}

// Coordinator fans a question out to the selected sources and gathers their
// results. One source failing never affects another.
type Coordinator struct {
	catalog Catalog
	meta    schema.SourceID
}

func NewCoordinator(catalog Catalog) *Coordinator {
	return &Coordinator{catalog: catalog}
}

// WithMetaSource names the source that describes the operator itself. General
// questions skip it; it is still reachable by Invoke or an explicit target.
func (c *Coordinator) WithMetaSource(id schema.SourceID) *Coordinator {
	c.meta = schema.NormalizeSourceID(string(id))
	return c
}

// Report is the full outcome of one dispatch.
type Report struct {
	Selected []schema.SourceID
	// Results holds one entry per source that completed, in selection order.
	Results []schema.SourceResult
	// Failed lists the sources that produced no result.
	Failed []schema.SourceID
}

// Select resolves a decision to the sources to query. General selects every
// registered source except the meta source; SpecificSubset keeps the
// registered targets in the order given; every other intent selects nothing.
func (c *Coordinator) Select(decision schema.RoutingDecision) []schema.SourceID {
	switch decision.Intent {
	case schema.IntentGeneral:
		var out []schema.SourceID
		for _, id := range c.catalog.IDs() {
			if c.meta != "" && id == c.meta {
				continue
			}
			out = append(out, id)
		}
		return out
	case schema.IntentSpecificSubset:
		var out []schema.SourceID
		seen := make(map[schema.SourceID]bool, len(decision.Targets))
		for _, raw := range decision.Targets {
			id := schema.NormalizeSourceID(string(raw))
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := c.catalog.Get(id); !ok {
				logger.Infof("orchestrator: dropping unknown source %q", raw)
				continue
			}
			out = append(out, id)
		}
		return out
	default:
		return nil
	}
}

// Dispatch runs the selected agents concurrently and returns the results of
// those that completed. It returns only after every invocation has finished.
func (c *Coordinator) Dispatch(ctx context.Context, question string, decision schema.RoutingDecision) []schema.SourceResult {
	return c.Run(ctx, question, decision).Results
}

// Run is Dispatch with the bookkeeping needed for request metrics.
func (c *Coordinator) Run(ctx context.Context, question string, decision schema.RoutingDecision) Report {
	selected := c.Select(decision)
	metrics.ObserveDispatch(len(selected))
	report := Report{Selected: selected}
	if len(selected) == 0 {
		return report
	}

	type slot struct {
		result schema.SourceResult
		ok     bool
	}
	slots := make([]slot, len(selected))

	var wg sync.WaitGroup
	for i, id := range selected {
		a, _ := c.catalog.Get(id)
		wg.Add(1)
		go func(i int, id schema.SourceID, a agent.Agent) {
			defer wg.Done()
			res, ok := invoke(ctx, id, a, question)
			slots[i] = slot{result: res, ok: ok}
		}(i, id, a)
	}
	wg.Wait()

	for i, s := range slots {
		if s.ok {
			report.Results = append(report.Results, s.result)
		} else {
			report.Failed = append(report.Failed, selected[i])
		}
	}
	logger.Infof("orchestrator: dispatched %d sources, %d completed, %d failed",
		len(selected), len(report.Results), len(report.Failed))
	return report
}

// Invoke runs a single registered source outside of any dispatch. ok is false
// when the source is unknown, fails, or panics.
func (c *Coordinator) Invoke(ctx context.Context, id schema.SourceID, question string) (schema.SourceResult, bool) {
	a, found := c.catalog.Get(id)
	if !found {
		logger.Warnf("orchestrator: source %q is not registered", id)
		return schema.SourceResult{}, false
	}
	return invoke(ctx, id, a, question)
}

// invoke runs one agent, turning errors and panics into an absent result.
func invoke(ctx context.Context, id schema.SourceID, a agent.Agent, question string) (res schema.SourceResult, ok bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("orchestrator: agent %s panicked: %v\n%s", id, r, debug.Stack())
			metrics.ObserveAgent(string(id), "panic", start)
			res, ok = schema.SourceResult{}, false
		}
	}()

	res, err := a.Analyze(ctx, question)
	if err != nil {
		logger.Warnf("orchestrator: agent %s failed: %v", id, err)
		metrics.ObserveAgent(string(id), "failed", start)
		return schema.SourceResult{}, false
	}
	// the registry key is authoritative for identity
	if res.Source != id {
		if res.Source != "" {
			logger.Warnf("orchestrator: agent %s reported source %q", id, res.Source)
		}
		res.Source = id
	}
	outcome := "empty"
	if res.CanAnswer {
		outcome = "answered"
	}
	metrics.ObserveAgent(string(id), outcome, start)
	return res, true
}

// String is used in logs.
func (r Report) String() string {
	return fmt.Sprintf("selected=%v completed=%d failed=%v", r.Selected, len(r.Results), r.Failed)
}
