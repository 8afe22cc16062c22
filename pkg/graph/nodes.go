package graph

import (
	"github.com/entrhq/compass/pkg/crm"
	"github.com/entrhq/compass/pkg/types"
)

// NodeID identifies a node in the orchestration graph. The set is closed:
// routing only ever produces one of these values, making illegal transitions
// unrepresentable.
type NodeID string

const (
	NodeClassify   NodeID = "classify"
	NodeFastLookup NodeID = "fast_lookup"
	NodeFastCount  NodeID = "fast_count"
	NodeFastList   NodeID = "fast_list"
	NodeRoute      NodeID = "route"
	NodeWorker     NodeID = "worker"
	NodeTools      NodeID = "tools"
	NodeEvaluator  NodeID = "evaluator"
	NodeEnd        NodeID = "end"
)

// NextNode returns the transition out of the state's current node, exposing
// each decision point for introspection and testing independently of the
// full loop. It is a pure function of state (plus the graph's registered
// worker variants, which determine evaluation skipping).
func (g *Graph) NextNode(s *ConversationState) NodeID {
	switch s.CurrentNode {
	case NodeClassify:
		return routeAfterClassify(s)
	case NodeFastLookup, NodeFastCount, NodeFastList:
		return NodeEnd
	case NodeRoute:
		return NodeWorker
	case NodeWorker:
		return g.routeAfterWorker(s)
	case NodeTools:
		return NodeWorker
	case NodeEvaluator:
		return g.routeAfterEvaluator(s)
	default:
		return NodeEnd
	}
}

// routeAfterClassify enters a fast path only when the classifier's
// intent/entity combination is fully specified and the entity is not a
// document: document operations need tool access, so they take the full
// flow. A lookup additionally requires a non-empty query.
func routeAfterClassify(s *ConversationState) NodeID {
	if s.LookupEntityType == "" || s.LookupEntityType == crm.EntityDocument {
		return NodeRoute
	}
	switch s.FastPathIntent {
	case IntentLookup:
		if s.LookupQuery == "" {
			return NodeRoute
		}
		return NodeFastLookup
	case IntentCount:
		return NodeFastCount
	case IntentList:
		return NodeFastList
	default:
		return NodeRoute
	}
}

// routeAfterWorker sends pending tool calls to the executor, returning
// control to the same worker afterwards. Without tool calls the matching
// evaluator runs, except for variants that skip evaluation, which end the
// turn immediately to bound iteration cost.
func (g *Graph) routeAfterWorker(s *ConversationState) NodeID {
	if msg := s.LastMessage(); msg != nil && msg.Role == types.RoleAssistant && msg.HasToolCalls() {
		return NodeTools
	}
	if w, ok := g.workers[s.RouteToAgent]; ok && w.SkipsEvaluation() {
		return NodeEnd
	}
	return NodeEvaluator
}

// routeAfterEvaluator retries the worker only when the evaluation armed a
// retry: the verdict was unmet, the user was not needed, and the iteration
// cap still had room. userInputNeeded surfaces the current response rather
// than retrying; cap exhaustion delivers the best available response as a
// soft-fail.
func (g *Graph) routeAfterEvaluator(s *ConversationState) NodeID {
	v := s.lastVerdict
	if v == nil || v.SuccessCriteriaMet || v.UserInputNeeded {
		return NodeEnd
	}
	if s.retryArmed {
		return NodeWorker
	}
	return NodeEnd
}
