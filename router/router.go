package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/metrics"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/registry"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

// Router classifies a question. It never fails: when it cannot decide it
// returns schema.DefaultDecision.
type Router interface {
	Route(ctx context.Context, question string) schema.RoutingDecision
}

// Accepted field names in the classifier's JSON reply, preferred first.
var (
	intentKeys = []string{"intent", "type"}
	targetKeys = []string{"sources", "insurers"}
)

// LLMRouter asks a model to classify the question against the source catalog.
type LLMRouter struct {
	Provider llm.Provider
	catalog  []registry.SourceInfo
	meta     schema.SourceID
}

// NewLLMRouter creates a router that knows the given sources. meta names the
// source that describes the operator itself; it may be empty.
func NewLLMRouter(provider llm.Provider, catalog []registry.SourceInfo, meta schema.SourceID) *LLMRouter {
	return &LLMRouter{Provider: provider, catalog: catalog, meta: meta}
}

// Route calls the classifier model and validates its reply.
func (r *LLMRouter) Route(ctx context.Context, question string) schema.RoutingDecision {
	reply, err := r.Provider.GenerateCompletion(ctx, classifyPrompt(r.catalog, r.meta, question))
	if err != nil {
		logger.Warnf("router: classifier call failed: %v", err)
		return r.fallback(fmt.Sprintf("classifier call failed: %v", err))
	}

	decision, err := ParseDecision(reply)
	if err != nil {
		logger.Warnf("router: %v; raw reply: %q", err, truncate(reply, 200))
		return r.fallback(err.Error())
	}

	metrics.IncClassification(decision.Intent.String(), false)
	logger.Infof("router: decision intent=%s targets=%v", decision.Intent, decision.Targets)
	return decision
}

func (r *LLMRouter) fallback(reason string) schema.RoutingDecision {
	d := schema.DefaultDecision(reason)
	metrics.IncClassification(d.Intent.String(), true)
	return d
}

// ParseDecision validates a classifier reply. Both the intent and the target
// list must be present; unknown target names are kept and filtered later.
func ParseDecision(reply string) (schema.RoutingDecision, error) {
	body := extractJSON(reply)
	if body == "" || !gjson.Valid(body) {
		return schema.RoutingDecision{}, fmt.Errorf("classifier reply is not valid JSON")
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return schema.RoutingDecision{}, fmt.Errorf("classifier reply is not a JSON object")
	}

	intentField := firstExisting(root, intentKeys)
	if !intentField.Exists() || intentField.Type != gjson.String {
		return schema.RoutingDecision{}, fmt.Errorf("classifier reply has no intent field")
	}
	intent, ok := schema.ParseIntent(intentField.String())
	if !ok {
		return schema.RoutingDecision{}, fmt.Errorf("classifier reply has unknown intent %q", intentField.String())
	}

	targetsField := firstExisting(root, targetKeys)
	if !targetsField.Exists() || !targetsField.IsArray() {
		return schema.RoutingDecision{}, fmt.Errorf("classifier reply has no source list")
	}

	decision := schema.RoutingDecision{Intent: intent}
	seen := make(map[schema.SourceID]bool)
	for _, t := range targetsField.Array() {
		if t.Type != gjson.String {
			continue
		}
		id := schema.NormalizeSourceID(t.String())
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		decision.Targets = append(decision.Targets, id)
	}
	return decision, nil
}

func firstExisting(root gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if v := root.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// extractJSON strips markdown code fences and any prose around the object.
func extractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:] // drop the language tag line
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	if gjson.Valid(s) {
		return s
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
