package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/agent"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	m.Run()
}

type fakeAgent struct {
	id      schema.SourceID
	delay   time.Duration
	result  schema.SourceResult
	err     error
	panics  bool
	calls   int32
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeAgent) ID() schema.SourceID { return f.id }
func (f *fakeAgent) Label() string       { return string(f.id) }

func (f *fakeAgent) Analyze(ctx context.Context, question string) (schema.SourceResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics {
		panic("corrupt corpus")
	}
	return f.result, f.err
}

type fakeCatalog struct {
	order  []schema.SourceID
	agents map[schema.SourceID]agent.Agent
}

func newCatalog(agents ...*fakeAgent) *fakeCatalog {
	c := &fakeCatalog{agents: map[schema.SourceID]agent.Agent{}}
	for _, a := range agents {
		c.order = append(c.order, a.id)
		c.agents[a.id] = a
	}
	return c
}

func (c *fakeCatalog) Get(id schema.SourceID) (agent.Agent, bool) {
	a, ok := c.agents[id]
	return a, ok
}

func (c *fakeCatalog) IDs() []schema.SourceID { return append([]schema.SourceID(nil), c.order...) }

func answering(id schema.SourceID, content string, delay time.Duration) *fakeAgent {
	return &fakeAgent{id: id, delay: delay, result: schema.SourceResult{Source: id, CanAnswer: true, Content: content}}
}

func bySource(results []schema.SourceResult) map[schema.SourceID]schema.SourceResult {
	out := map[schema.SourceID]schema.SourceResult{}
	for _, r := range results {
		out[r.Source] = r
	}
	return out
}

func TestSelect(t *testing.T) {
	c := NewCoordinator(newCatalog(answering("cardif", "", 0), answering("april", "", 0), answering("afi", "", 0)))

	tests := []struct {
		name     string
		decision schema.RoutingDecision
		want     []schema.SourceID
	}{
		{"general selects all", schema.RoutingDecision{Intent: schema.IntentGeneral, Targets: []schema.SourceID{"april"}}, []schema.SourceID{"cardif", "april", "afi"}},
		{"subset keeps known targets", schema.RoutingDecision{Intent: schema.IntentSpecificSubset, Targets: []schema.SourceID{"afi", "axa", "AFI", "cardif"}}, []schema.SourceID{"afi", "cardif"}},
		{"subset with only unknown targets", schema.RoutingDecision{Intent: schema.IntentSpecificSubset, Targets: []schema.SourceID{"axa"}}, nil},
		{"subset without targets", schema.RoutingDecision{Intent: schema.IntentSpecificSubset}, nil},
		{"greeting", schema.RoutingDecision{Intent: schema.IntentGreeting}, nil},
		{"off topic", schema.RoutingDecision{Intent: schema.IntentOffTopic}, nil},
		{"meta inquiry", schema.RoutingDecision{Intent: schema.IntentMetaInquiry, Targets: []schema.SourceID{"cardif"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Select(tt.decision))
		})
	}
}

func TestSelect_GeneralSkipsMetaSource(t *testing.T) {
	c := NewCoordinator(newCatalog(answering("cardif", "", 0), answering("brokins", "", 0), answering("april", "", 0))).
		WithMetaSource("BROKINS")

	assert.Equal(t, []schema.SourceID{"cardif", "april"}, c.Select(schema.RoutingDecision{Intent: schema.IntentGeneral}))
	assert.Equal(t, []schema.SourceID{"brokins"},
		c.Select(schema.RoutingDecision{Intent: schema.IntentSpecificSubset, Targets: []schema.SourceID{"brokins"}}))

	res, ok := c.Invoke(context.Background(), "brokins", "q")
	assert.True(t, ok)
	assert.EqualValues(t, "brokins", res.Source)
}

func TestDispatch_IdentitySurvivesCompletionOrder(t *testing.T) {
	// slowest first, so completion order is the reverse of selection order
	a := answering("a", "content of a", 60*time.Millisecond)
	b := answering("b", "content of b", 30*time.Millisecond)
	c := answering("c", "content of c", 0)
	coord := NewCoordinator(newCatalog(a, b, c))

	results := coord.Dispatch(context.Background(), "q", schema.RoutingDecision{Intent: schema.IntentGeneral})
	require.Len(t, results, 3)
	got := bySource(results)
	for _, id := range []schema.SourceID{"a", "b", "c"} {
		assert.Equal(t, "content of "+string(id), got[id].Content)
	}
}

func TestDispatch_SourceFieldIsAuthoritative(t *testing.T) {
	liar := &fakeAgent{id: "cardif", result: schema.SourceResult{Source: "april", CanAnswer: true, Content: "x"}}
	coord := NewCoordinator(newCatalog(liar))

	results := coord.Dispatch(context.Background(), "q", schema.RoutingDecision{Intent: schema.IntentGeneral})
	require.Len(t, results, 1)
	assert.EqualValues(t, "cardif", results[0].Source)
}

func TestDispatch_FailureIsolation(t *testing.T) {
	a := answering("a", "A", 10*time.Millisecond)
	b := &fakeAgent{id: "b", err: errors.New("model unavailable"), result: schema.SourceResult{Source: "b", Content: "b : erreur"}}
	c := answering("c", "C", 0)
	p := &fakeAgent{id: "p", panics: true}
	coord := NewCoordinator(newCatalog(a, b, c, p))

	report := coord.Run(context.Background(), "q", schema.RoutingDecision{Intent: schema.IntentGeneral})
	got := bySource(report.Results)
	assert.Len(t, report.Results, 2)
	assert.Contains(t, got, schema.SourceID("a"))
	assert.Contains(t, got, schema.SourceID("c"))
	assert.ElementsMatch(t, []schema.SourceID{"b", "p"}, report.Failed)
}

func TestDispatch_NotAnswerableIsStillAResult(t *testing.T) {
	empty := &fakeAgent{id: "afi", result: schema.SourceResult{Source: "afi", CanAnswer: false, Content: "rien"}}
	coord := NewCoordinator(newCatalog(empty))

	results := coord.Dispatch(context.Background(), "q", schema.RoutingDecision{Intent: schema.IntentGeneral})
	require.Len(t, results, 1)
	assert.False(t, results[0].CanAnswer)
}

func TestDispatch_AllFailReturnsEmpty(t *testing.T) {
	a := &fakeAgent{id: "a", err: errors.New("x")}
	b := &fakeAgent{id: "b", panics: true}
	coord := NewCoordinator(newCatalog(a, b))

	results := coord.Dispatch(context.Background(), "q", schema.RoutingDecision{Intent: schema.IntentGeneral})
	assert.Empty(t, results)
}

func TestDispatch_NoSelectionInvokesNothing(t *testing.T) {
	a := answering("a", "A", 0)
	coord := NewCoordinator(newCatalog(a))

	for _, intent := range []schema.Intent{schema.IntentGreeting, schema.IntentOffTopic, schema.IntentMetaInquiry} {
		results := coord.Dispatch(context.Background(), "q", schema.RoutingDecision{Intent: intent})
		assert.Empty(t, results)
	}
	results := coord.Dispatch(context.Background(), "q", schema.RoutingDecision{
		Intent: schema.IntentSpecificSubset, Targets: []schema.SourceID{"unknown"},
	})
	assert.Empty(t, results)
	assert.Zero(t, atomic.LoadInt32(&a.calls))
}

func TestDispatch_RunsConcurrently(t *testing.T) {
	// each agent blocks until all three have started
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	var agents []*fakeAgent
	for _, id := range []schema.SourceID{"a", "b", "c"} {
		agents = append(agents, &fakeAgent{id: id, started: started, gate: release, result: schema.SourceResult{Source: id, CanAnswer: true}})
	}
	go func() {
		for i := 0; i < 3; i++ {
			<-started
		}
		close(release)
	}()
	coord := NewCoordinator(newCatalog(agents...))

	done := make(chan []schema.SourceResult)
	go func() {
		done <- coord.Dispatch(context.Background(), "q", schema.RoutingDecision{Intent: schema.IntentGeneral})
	}()

	select {
	case <-release:
	case <-time.After(2 * time.Second):
		t.Fatal("agents were not started concurrently")
	}
	select {
	case results := <-done:
		assert.Len(t, results, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return")
	}
}

func TestDispatch_PartialSubset(t *testing.T) {
	coord := NewCoordinator(newCatalog(answering("cardif", "C", 0), answering("april", "A", 0)))
	results := coord.Dispatch(context.Background(), "q", schema.RoutingDecision{
		Intent: schema.IntentSpecificSubset, Targets: []schema.SourceID{"april", "generali"},
	})
	require.Len(t, results, 1)
	assert.EqualValues(t, "april", results[0].Source)
}

func TestInvoke(t *testing.T) {
	ok := answering("brokins", "Nous sommes courtiers.", 0)
	broken := &fakeAgent{id: "broken", panics: true}
	coord := NewCoordinator(newCatalog(ok, broken))

	res, found := coord.Invoke(context.Background(), "brokins", "q")
	require.True(t, found)
	assert.Equal(t, "Nous sommes courtiers.", res.Content)

	_, found = coord.Invoke(context.Background(), "broken", "q")
	assert.False(t, found)

	_, found = coord.Invoke(context.Background(), "missing", "q")
	assert.False(t, found)
}
