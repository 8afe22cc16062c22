package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/compass/pkg/crm"
	"github.com/entrhq/compass/pkg/types"
)

// fakeClassifier returns a scripted intent or error.
type fakeClassifier struct {
	intent *Intent
	usage  types.TokenUsage
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, lastUserMessage string) (*Intent, types.TokenUsage, error) {
	return f.intent, f.usage, f.err
}

// fakeWorker returns scripted outputs in order, then repeats the last one.
type fakeWorker struct {
	role     string
	skipEval bool
	outputs  []*WorkerOutput
	err      error
	calls    int
	prompts  []string // FeedbackOnWork captured per call
}

func (f *fakeWorker) Role() string          { return f.role }
func (f *fakeWorker) SkipsEvaluation() bool { return f.skipEval }

func (f *fakeWorker) Execute(ctx context.Context, state *ConversationState, emit types.EventHandler) (*WorkerOutput, error) {
	f.prompts = append(f.prompts, state.FeedbackOnWork)
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	if i >= len(f.outputs) {
		i = len(f.outputs) - 1
	}
	f.calls++
	return f.outputs[i], nil
}

func workerReply(content string, usage types.TokenUsage) *WorkerOutput {
	return &WorkerOutput{Message: types.NewAssistantMessage(content), Usage: usage}
}

// fakeEvaluator returns scripted verdicts in order.
type fakeEvaluator struct {
	role     string
	verdicts []*Verdict
	usage    types.TokenUsage
	err      error
	calls    int
}

func (f *fakeEvaluator) Role() string { return f.role }

func (f *fakeEvaluator) Evaluate(ctx context.Context, state *ConversationState) (*Verdict, types.TokenUsage, error) {
	if f.err != nil {
		return nil, types.TokenUsage{}, f.err
	}
	i := f.calls
	if i >= len(f.verdicts) {
		i = len(f.verdicts) - 1
	}
	f.calls++
	return f.verdicts[i], f.usage, nil
}

// fakeExecutor records calls and returns canned tool results.
type fakeExecutor struct {
	results map[string]string
	calls   int
}

func (f *fakeExecutor) ExecuteAll(ctx context.Context, calls []types.ToolCall, emit types.EventHandler) []*types.Message {
	f.calls++
	out := make([]*types.Message, 0, len(calls))
	for _, call := range calls {
		out = append(out, types.NewToolMessage(call.ID, call.Name, f.results[call.Name]))
	}
	return out
}

func seededStore() *crm.MemoryStore {
	store := crm.NewMemoryStore()
	store.Add(crm.Record{ID: "1", Type: crm.EntityIndividual, Name: "Maya Lindqvist",
		Fields: map[string]string{"company": "Northwind"}})
	store.Add(crm.Record{ID: "2", Type: crm.EntityContact, Name: "Priya Raman"})
	store.Add(crm.Record{ID: "3", Type: crm.EntityContact, Name: "Tomas Okafor"})
	return store
}

func passVerdict() *Verdict  { return &Verdict{SuccessCriteriaMet: true, Score: 90} }
func retryVerdict() *Verdict { return &Verdict{Feedback: "add detail", Score: 30} }

func stateWithUser(content string) *ConversationState {
	return NewConversationState([]*types.Message{types.NewUserMessage(content)})
}

func mustGraph(t *testing.T, cfg Config) *Graph {
	t.Helper()
	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

func TestFastPathLookupSkipsWorker(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("unused", types.TokenUsage{})}}
	g := mustGraph(t, Config{
		Classifier: &fakeClassifier{
			intent: &Intent{Type: IntentLookup, Entity: crm.EntityIndividual, Query: "maya"},
			usage:  types.TokenUsage{TotalTokens: 10},
		},
		Workers: []Worker{w},
		Store:   seededStore(),
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("look up maya"), nil)
	require.NoError(t, err)
	assert.Zero(t, w.calls)
	assert.Contains(t, state.FinalAnswer(), "Maya Lindqvist")
	assert.Equal(t, 10, state.TokenUsage.TotalTokens)
}

func TestFastPathCount(t *testing.T) {
	g := mustGraph(t, Config{
		Classifier: &fakeClassifier{intent: &Intent{Type: IntentCount, Entity: crm.EntityContact}},
		Workers:    []Worker{&fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("unused", types.TokenUsage{})}}},
		Store:      seededStore(),
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("how many contacts"), nil)
	require.NoError(t, err)
	assert.Contains(t, state.FinalAnswer(), "2")
}

func TestDocumentEntityTakesFullFlow(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("here is the document summary", types.TokenUsage{})}}
	g := mustGraph(t, Config{
		Classifier: &fakeClassifier{intent: &Intent{Type: IntentLookup, Entity: crm.EntityDocument, Query: "resume"}},
		Workers:    []Worker{w},
		Evaluators: []Evaluator{&fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{passVerdict()}}},
		Store:      seededStore(),
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("look up my resume document"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, "here is the document summary", state.FinalAnswer())
}

func TestLookupWithoutQueryTakesFullFlow(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("which record?", types.TokenUsage{})}}
	g := mustGraph(t, Config{
		Classifier: &fakeClassifier{intent: &Intent{Type: IntentLookup, Entity: crm.EntityIndividual}},
		Workers:    []Worker{w},
		Evaluators: []Evaluator{&fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{passVerdict()}}},
		Store:      seededStore(),
	})

	_, err := g.RunTurn(context.Background(), stateWithUser("look something up"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
}

func TestClassifierFailureDegradesToFullFlow(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("full flow answer", types.TokenUsage{})}}
	g := mustGraph(t, Config{
		Classifier: &fakeClassifier{err: fmt.Errorf("classifier down")},
		Workers:    []Worker{w},
		Evaluators: []Evaluator{&fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{passVerdict()}}},
		Store:      seededStore(),
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("look up maya"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, "full flow answer", state.FinalAnswer())
}

func TestRetryLoopStopsOnPass(t *testing.T) {
	// Verdicts false, false, true: two retries, then delivery.
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{
		workerReply("attempt 1", types.TokenUsage{}),
		workerReply("attempt 2", types.TokenUsage{}),
		workerReply("attempt 3", types.TokenUsage{}),
	}}
	ev := &fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{
		retryVerdict(), retryVerdict(), passVerdict(),
	}}
	g := mustGraph(t, Config{Workers: []Worker{w}, Evaluators: []Evaluator{ev}})

	state, err := g.RunTurn(context.Background(), stateWithUser("do the thing"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, w.calls)
	assert.Equal(t, 2, state.IterationCount)
	assert.Equal(t, "attempt 3", state.FinalAnswer())
	// The second and third attempts saw the evaluator's feedback.
	assert.Equal(t, []string{"", "add detail", "add detail"}, w.prompts)
}

func TestRetryLoopExhaustsCapAndDelivers(t *testing.T) {
	// Every verdict fails: the cap of 3 allows three retries (four attempts),
	// then the last output is delivered as a soft-fail.
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{
		workerReply("attempt 1", types.TokenUsage{}),
		workerReply("attempt 2", types.TokenUsage{}),
		workerReply("attempt 3", types.TokenUsage{}),
		workerReply("attempt 4", types.TokenUsage{}),
	}}
	ev := &fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{retryVerdict()}}
	g := mustGraph(t, Config{Workers: []Worker{w}, Evaluators: []Evaluator{ev}, MaxIterations: 3})

	state, err := g.RunTurn(context.Background(), stateWithUser("do the thing"), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, w.calls)
	assert.Equal(t, 3, state.IterationCount)
	assert.Equal(t, "attempt 4", state.FinalAnswer())
}

func TestUserInputNeededEndsTurnWithoutRetry(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("which role do you mean?", types.TokenUsage{})}}
	ev := &fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{
		{Feedback: "ambiguous", UserInputNeeded: true, Score: 40},
	}}
	g := mustGraph(t, Config{Workers: []Worker{w}, Evaluators: []Evaluator{ev}})

	state, err := g.RunTurn(context.Background(), stateWithUser("apply for it"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, "which role do you mean?", state.FinalAnswer())
}

func TestEvaluatorFailurePassesOptimistically(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("answer", types.TokenUsage{})}}
	ev := &fakeEvaluator{role: RoleGeneral, err: fmt.Errorf("judge down")}
	g := mustGraph(t, Config{Workers: []Worker{w}, Evaluators: []Evaluator{ev}})

	state, err := g.RunTurn(context.Background(), stateWithUser("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, "answer", state.FinalAnswer())
	assert.Zero(t, state.IterationCount)
}

func TestMissingEvaluatorPassesOptimistically(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("answer", types.TokenUsage{})}}
	g := mustGraph(t, Config{Workers: []Worker{w}})

	state, err := g.RunTurn(context.Background(), stateWithUser("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, "answer", state.FinalAnswer())
}

func TestSkipEvaluationEndsAfterWorker(t *testing.T) {
	scraper := &fakeWorker{role: RoleScraper, skipEval: true,
		outputs: []*WorkerOutput{workerReply("extracted data", types.TokenUsage{})}}
	general := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("unused", types.TokenUsage{})}}
	ev := &fakeEvaluator{role: RoleScraper, verdicts: []*Verdict{retryVerdict()}}
	g := mustGraph(t, Config{
		Route:      func([]*types.Message) string { return RoleScraper },
		Workers:    []Worker{general, scraper},
		Evaluators: []Evaluator{ev},
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("scrape the page"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, scraper.calls)
	assert.Zero(t, ev.calls)
	assert.Equal(t, "extracted data", state.FinalAnswer())
}

func TestToolLoopReturnsToSameWorker(t *testing.T) {
	withCalls := types.NewAssistantMessage("")
	withCalls.ToolCalls = []types.ToolCall{{ID: "c1", Name: "crm_lookup", Arguments: `{"query":"maya"}`}}
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{
		{Message: withCalls},
		workerReply("Maya works at Northwind.", types.TokenUsage{}),
	}}
	exec := &fakeExecutor{results: map[string]string{"crm_lookup": "Maya Lindqvist (individual)"}}
	g := mustGraph(t, Config{
		Workers:    []Worker{w},
		Evaluators: []Evaluator{&fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{passVerdict()}}},
		Tools:      exec,
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("where does maya work"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, w.calls)
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, "Maya works at Northwind.", state.FinalAnswer())

	// The tool result landed in history as a tool-role message.
	var sawToolMessage bool
	for _, msg := range state.Messages {
		if msg.Role == types.RoleTool {
			sawToolMessage = true
			assert.Equal(t, "c1", msg.ToolCallID)
		}
	}
	assert.True(t, sawToolMessage)
}

func TestNilToolExecutorProducesErrorResults(t *testing.T) {
	withCalls := types.NewAssistantMessage("")
	withCalls.ToolCalls = []types.ToolCall{{ID: "c1", Name: "web_search", Arguments: `{}`}}
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{
		{Message: withCalls},
		workerReply("I could not search.", types.TokenUsage{}),
	}}
	g := mustGraph(t, Config{
		Workers:    []Worker{w},
		Evaluators: []Evaluator{&fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{passVerdict()}}},
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("search for jobs"), nil)
	require.NoError(t, err)

	var sawError bool
	for _, msg := range state.Messages {
		if msg.Role == types.RoleTool && msg.IsError {
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.Equal(t, "I could not search.", state.FinalAnswer())
}

func TestToolLoopCircuitBreakerBoundsTheTurn(t *testing.T) {
	withCalls := types.NewAssistantMessage("")
	withCalls.ToolCalls = []types.ToolCall{{ID: "c1", Name: "crm_lookup", Arguments: `{"query":"maya"}`}}
	// The worker never stops requesting tools.
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{{Message: withCalls}}}
	exec := &fakeExecutor{results: map[string]string{"crm_lookup": "Maya Lindqvist (individual)"}}
	g := mustGraph(t, Config{
		Workers:       []Worker{w},
		Tools:         exec,
		MaxToolCycles: 2,
	})

	var sawErrorEvent bool
	state, err := g.RunTurn(context.Background(), stateWithUser("where does maya work"), func(e *types.AgentEvent) {
		if e.Type == types.EventTypeError {
			sawErrorEvent = true
		}
	})
	require.NoError(t, err)
	assert.True(t, sawErrorEvent)
	assert.Equal(t, NodeEnd, state.CurrentNode)
	assert.Equal(t, 3, w.calls)
	assert.Equal(t, 2, exec.calls)
}

func TestWorkerFailureIsTheOnlyHardError(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, err: fmt.Errorf("model unavailable")}
	g := mustGraph(t, Config{Workers: []Worker{w}})

	var sawErrorEvent bool
	_, err := g.RunTurn(context.Background(), stateWithUser("hello"), func(e *types.AgentEvent) {
		if e.Type == types.EventTypeError {
			sawErrorEvent = true
		}
	})
	require.Error(t, err)
	assert.True(t, sawErrorEvent)
}

func TestTokenUsageAccumulatesAcrossNodes(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{
		workerReply("attempt 1", types.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}),
		workerReply("attempt 2", types.TokenUsage{PromptTokens: 110, CompletionTokens: 30, TotalTokens: 140}),
	}}
	ev := &fakeEvaluator{role: RoleGeneral,
		verdicts: []*Verdict{retryVerdict(), passVerdict()},
		usage:    types.TokenUsage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60}}
	g := mustGraph(t, Config{
		Classifier: &fakeClassifier{intent: &Intent{Type: IntentOther}, usage: types.TokenUsage{TotalTokens: 15}},
		Workers:    []Worker{w},
		Evaluators: []Evaluator{ev},
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("do it"), nil)
	require.NoError(t, err)
	// classifier 15 + workers 120+140 + evaluators 60+60.
	assert.Equal(t, 395, state.TokenUsage.TotalTokens)
}

func TestCancellationStopsSilently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("partial", types.TokenUsage{})}}
	ev := &fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{passVerdict()}}
	g := mustGraph(t, Config{
		Classifier: &fakeClassifier{intent: &Intent{Type: IntentOther}},
		Workers:    []Worker{w},
		Evaluators: []Evaluator{ev},
	})

	cancel()
	state, err := g.RunTurn(ctx, stateWithUser("hello"), nil)
	require.NoError(t, err)
	assert.Zero(t, w.calls)
	assert.NotEqual(t, NodeEnd, state.CurrentNode)
}

func TestUnknownRouteFallsBackToGeneral(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{workerReply("general answer", types.TokenUsage{})}}
	g := mustGraph(t, Config{
		Route:      func([]*types.Message) string { return "nonexistent_variant" },
		Workers:    []Worker{w},
		Evaluators: []Evaluator{&fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{passVerdict()}}},
	})

	state, err := g.RunTurn(context.Background(), stateWithUser("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, RoleGeneral, state.RouteToAgent)
	assert.Equal(t, "general answer", state.FinalAnswer())
}

func TestNewRequiresGeneralWorker(t *testing.T) {
	_, err := New(Config{Workers: []Worker{&fakeWorker{role: RoleScraper}}})
	require.Error(t, err)
}

func TestNewRejectsDuplicateRoles(t *testing.T) {
	_, err := New(Config{Workers: []Worker{
		&fakeWorker{role: RoleGeneral}, &fakeWorker{role: RoleGeneral},
	}})
	require.Error(t, err)
}

func TestStateReuseAcrossTurns(t *testing.T) {
	w := &fakeWorker{role: RoleGeneral, outputs: []*WorkerOutput{
		workerReply("first answer", types.TokenUsage{}),
		workerReply("second answer", types.TokenUsage{}),
	}}
	ev := &fakeEvaluator{role: RoleGeneral, verdicts: []*Verdict{
		retryVerdict(), passVerdict(), passVerdict(),
	}}
	g := mustGraph(t, Config{Workers: []Worker{w}, Evaluators: []Evaluator{ev}})

	state := stateWithUser("turn one")
	_, err := g.RunTurn(context.Background(), state, nil)
	require.NoError(t, err)
	require.Equal(t, 1, state.IterationCount)

	// The retry bookkeeping from turn one must not leak into turn two.
	state.Messages = append(state.Messages, types.NewUserMessage("turn two"))
	_, err = g.RunTurn(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Zero(t, state.IterationCount)
	assert.Empty(t, state.FeedbackOnWork)
}
