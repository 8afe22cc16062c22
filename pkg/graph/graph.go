// Package graph implements the conversational task-orchestration engine: a
// state machine of cooperating decision nodes that drives one conversational
// turn through classification, routing, specialized generation, tool use, and
// self-evaluation, under a bounded retry loop.
//
// Within a turn every node runs strictly sequentially with a single writer
// (the driver). Distinct turns may run concurrently as independent tasks
// sharing only stateless model and tool clients.
package graph

import (
	"context"
	"fmt"

	"github.com/entrhq/compass/pkg/crm"
	"github.com/entrhq/compass/pkg/logging"
	"github.com/entrhq/compass/pkg/types"
)

// DefaultMaxIterations caps the worker→evaluator retry loop.
const DefaultMaxIterations = 3

// DefaultMaxToolCycles caps worker→tools round trips per turn.
const DefaultMaxToolCycles = 8

// Config assembles a graph. All collaborators are passed in explicitly;
// the graph holds no hidden global state.
type Config struct {
	// Classifier is the cheap intent classifier. Optional: when nil every
	// request takes the full flow.
	Classifier IntentClassifier

	// Route decides the worker variant for full-flow requests. Optional:
	// when nil everything routes to the general worker.
	Route RouteFunc

	// Workers are the registered specializations. A worker for RoleGeneral
	// is required as the routing fallback.
	Workers []Worker

	// Evaluators judge worker output, matched to workers by role. A
	// missing evaluator passes optimistically.
	Evaluators []Evaluator

	// Tools resolves tool-call requests. Optional: when nil, requested
	// tool calls produce error results.
	Tools ToolExecutor

	// Store backs the fast-path handlers.
	Store crm.Store

	// MaxIterations caps evaluator-driven retries. Zero uses the default.
	MaxIterations int

	// MaxToolCycles caps worker→tools round trips per turn. A worker still
	// requesting tools past the cap trips a circuit breaker that ends the
	// turn. Zero uses the default.
	MaxToolCycles int

	// Logger receives debug output. Optional.
	Logger *logging.Logger
}

// Graph is the orchestration engine. It is safe for concurrent use: RunTurn
// may be called from multiple goroutines with distinct states.
type Graph struct {
	classifier    IntentClassifier
	route         RouteFunc
	workers       map[string]Worker
	evaluators    map[string]Evaluator
	tools         ToolExecutor
	store         crm.Store
	maxIterations int
	maxToolCycles int
	log           *logging.Logger
}

// New builds a graph from the given configuration.
func New(cfg Config) (*Graph, error) {
	workers := make(map[string]Worker, len(cfg.Workers))
	for _, w := range cfg.Workers {
		if w == nil || w.Role() == "" {
			return nil, fmt.Errorf("worker with empty role")
		}
		if _, dup := workers[w.Role()]; dup {
			return nil, fmt.Errorf("duplicate worker for role %q", w.Role())
		}
		workers[w.Role()] = w
	}
	if _, ok := workers[RoleGeneral]; !ok {
		return nil, fmt.Errorf("a worker for role %q is required", RoleGeneral)
	}

	evaluators := make(map[string]Evaluator, len(cfg.Evaluators))
	for _, e := range cfg.Evaluators {
		evaluators[e.Role()] = e
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	maxToolCycles := cfg.MaxToolCycles
	if maxToolCycles <= 0 {
		maxToolCycles = DefaultMaxToolCycles
	}

	log := cfg.Logger
	if log == nil {
		log, _ = logging.NewLogger("graph")
	}

	return &Graph{
		classifier:    cfg.Classifier,
		route:         cfg.Route,
		workers:       workers,
		evaluators:    evaluators,
		tools:         cfg.Tools,
		store:         cfg.Store,
		maxIterations: maxIterations,
		maxToolCycles: maxToolCycles,
		log:           log,
	}, nil
}

// MaxIterations returns the configured retry cap.
func (g *Graph) MaxIterations() int {
	return g.maxIterations
}

// RunTurn executes one conversational turn to completion, mutating and
// returning the given state. Events are emitted through emit (which may be
// nil) as nodes produce output.
//
// Every path resolves to a deliverable response except model invocation
// failure, the only error category allowed to reach the caller. The tool
// loop is bounded: once MaxToolCycles round trips are spent, a worker still
// requesting tools trips a circuit breaker that ends the turn with the best
// available output and an error event. A canceled context stops further
// node invocations silently: partial streamed output
// already sent is not retracted, and no error is raised for the
// cancellation itself.
func (g *Graph) RunTurn(ctx context.Context, state *ConversationState, emit types.EventHandler) (*ConversationState, error) {
	emit = safeEmit(emit)
	emit(types.NewTurnStartEvent())

	state.beginTurn()
	for state.CurrentNode != NodeEnd {
		if ctx.Err() != nil {
			g.log.Infof("turn canceled at node %s", state.CurrentNode)
			return state, nil
		}
		emit(types.NewNodeTransitionEvent(string(state.CurrentNode)))

		var err error
		switch state.CurrentNode {
		case NodeClassify:
			g.runClassify(ctx, state)
		case NodeFastLookup, NodeFastCount, NodeFastList:
			g.runFastPath(ctx, state)
		case NodeRoute:
			g.runRoute(state)
		case NodeWorker:
			err = g.runWorker(ctx, state, emit)
		case NodeTools:
			// Circuit breaker: a worker still requesting tools past the
			// cycle cap ends the turn with whatever output exists.
			if state.toolCycles >= g.maxToolCycles {
				breakerErr := fmt.Errorf("tool loop stopped after %d cycles without a final response", state.toolCycles)
				g.log.Errorf("%v", breakerErr)
				emit(types.NewErrorEvent(breakerErr))
				state.CurrentNode = NodeEnd
				continue
			}
			state.toolCycles++
			g.runTools(ctx, state, emit)
		case NodeEvaluator:
			g.runEvaluator(ctx, state)
		default:
			// Unknown node: deliver what we have rather than hang.
			g.log.Errorf("unknown node %q, ending turn", state.CurrentNode)
			state.CurrentNode = NodeEnd
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return state, nil
			}
			emit(types.NewErrorEvent(err))
			return state, err
		}

		state.CurrentNode = g.NextNode(state)
	}

	emit(types.NewContentEvent(state.FinalAnswer(), true))
	emit(types.NewTurnEndEvent())
	return state, nil
}

// runClassify invokes the intent classifier and merges its verdict.
// Classification failure degrades to the full flow rather than blocking the
// turn.
func (g *Graph) runClassify(ctx context.Context, s *ConversationState) {
	s.FastPathIntent = IntentOther
	s.LookupEntityType = ""
	s.LookupQuery = ""

	if g.classifier == nil {
		return
	}
	last := s.LastUserMessage()
	if last == nil {
		return
	}

	intent, usage, err := g.classifier.Classify(ctx, last.Content)
	s.addUsage(usage)
	if err != nil || intent == nil {
		g.log.Warnf("intent classification failed, taking full flow: %v", err)
		return
	}

	s.FastPathIntent = intent.Type
	s.LookupEntityType = entityTypeOrEmpty(string(intent.Entity))
	s.LookupQuery = intent.Query
}

// runFastPath executes the chosen fast-path handler and records its result
// as the turn's answer.
func (g *Graph) runFastPath(ctx context.Context, s *ConversationState) {
	if g.store == nil {
		s.LookupResult = "Sorry, record lookups are not available."
	} else {
		switch s.CurrentNode {
		case NodeFastLookup:
			s.LookupResult = g.fastLookup(ctx, s)
		case NodeFastCount:
			s.LookupResult = g.fastCount(ctx, s)
		case NodeFastList:
			s.LookupResult = g.fastList(ctx, s)
		}
	}
	s.append(types.NewAssistantMessage(s.LookupResult))
}

// runRoute picks the worker variant for this turn.
func (g *Graph) runRoute(s *ConversationState) {
	route := RoleGeneral
	if g.route != nil {
		if r := g.route(s.Messages); r != "" {
			route = r
		}
	}
	if _, ok := g.workers[route]; !ok {
		g.log.Warnf("no worker registered for route %q, using %q", route, RoleGeneral)
		route = RoleGeneral
	}
	s.RouteToAgent = route
	g.log.Debugf("routed turn to %q", route)
}

// runWorker executes the routed worker variant for one generation pass.
// Model invocation failure (after the provider's own bounded retries) is the
// only hard failure, surfaced to RunTurn's caller.
func (g *Graph) runWorker(ctx context.Context, s *ConversationState, emit types.EventHandler) error {
	w, ok := g.workers[s.RouteToAgent]
	if !ok {
		w = g.workers[RoleGeneral]
	}

	out, err := w.Execute(ctx, s, emit)
	if err != nil {
		return fmt.Errorf("worker %q failed: %w", w.Role(), err)
	}

	s.append(out.Message)
	s.addUsage(out.Usage)
	if !out.Usage.IsZero() {
		emit(types.NewTokenUsageEvent(out.Usage.PromptTokens, out.Usage.CompletionTokens, out.Usage.TotalTokens))
	}
	return nil
}

// runTools resolves the pending tool calls on the latest assistant message.
// Tool failures are recoverable data appended to history, not faults.
func (g *Graph) runTools(ctx context.Context, s *ConversationState, emit types.EventHandler) {
	msg := s.LastMessage()
	if msg == nil || !msg.HasToolCalls() {
		return
	}

	if g.tools == nil {
		for _, call := range msg.ToolCalls {
			s.append(types.NewToolErrorMessage(call.ID, call.Name, fmt.Sprintf("tool %q is not available", call.Name)))
		}
		return
	}
	s.append(g.tools.ExecuteAll(ctx, msg.ToolCalls, emit)...)
}

// runEvaluator judges the latest worker output and arms the retry loop.
// Evaluator failure defaults to an optimistic pass.
func (g *Graph) runEvaluator(ctx context.Context, s *ConversationState) {
	ev, ok := g.evaluators[s.RouteToAgent]
	if !ok {
		s.lastVerdict = OptimisticVerdict()
		s.retryArmed = false
		return
	}

	verdict, usage, err := ev.Evaluate(ctx, s)
	s.addUsage(usage)
	if err != nil || verdict == nil {
		g.log.Warnf("evaluator for %q failed, passing optimistically: %v", s.RouteToAgent, err)
		s.lastVerdict = OptimisticVerdict()
		s.retryArmed = false
		return
	}
	s.lastVerdict = verdict
	g.log.Debugf("evaluator verdict for %q: met=%v score=%d userInput=%v",
		s.RouteToAgent, verdict.SuccessCriteriaMet, verdict.Score, verdict.UserInputNeeded)

	// Arm the retry: the worker's next attempt differs from the first only
	// by the feedback block.
	s.retryArmed = false
	if !verdict.SuccessCriteriaMet && !verdict.UserInputNeeded && s.IterationCount < g.maxIterations {
		s.FeedbackOnWork = verdict.Feedback
		s.IterationCount++
		s.retryArmed = true
	}
}

// safeEmit returns a nil-tolerant event handler.
func safeEmit(emit types.EventHandler) types.EventHandler {
	if emit == nil {
		return func(*types.AgentEvent) {}
	}
	return emit
}
