package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/compass/pkg/logging"
	"github.com/entrhq/compass/pkg/types"
)

// Executor resolves a model's pending tool-call requests against a registry
// and converts each into a tool-role message. Tool failures (unknown tool,
// bad arguments, execution error, timeout) become error-text results
// visible to the next generation pass; they never propagate as faults.
type Executor struct {
	registry *Registry
	log      *logging.Logger
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry) *Executor {
	log, _ := logging.NewLogger("tools")
	return &Executor{registry: registry, log: log}
}

// ExecuteAll resolves every pending call in order and returns one tool-role
// message per call. Events are emitted through emit as calls start and
// finish.
func (e *Executor) ExecuteAll(ctx context.Context, calls []types.ToolCall, emit types.EventHandler) []*types.Message {
	if emit == nil {
		emit = func(*types.AgentEvent) {}
	}

	results := make([]*types.Message, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.executeOne(ctx, call, emit))
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, call types.ToolCall, emit types.EventHandler) *types.Message {
	args, err := parseArguments(call.Arguments)
	if err != nil {
		e.log.Warnf("tool %q received invalid arguments: %v", call.Name, err)
		emit(types.NewToolErrorEvent(call.Name, err))
		return types.NewToolErrorMessage(call.ID, call.Name, fmt.Sprintf("invalid arguments: %v", err))
	}

	emit(types.NewToolCallEvent(call.Name, args))

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		err := fmt.Errorf("unknown tool %q", call.Name)
		e.log.Warnf("%v", err)
		emit(types.NewToolErrorEvent(call.Name, err))
		return types.NewToolErrorMessage(call.ID, call.Name, err.Error())
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		e.log.Warnf("tool %q failed: %v", call.Name, err)
		emit(types.NewToolErrorEvent(call.Name, err))
		return types.NewToolErrorMessage(call.ID, call.Name, fmt.Sprintf("tool %q failed: %v", call.Name, err))
	}

	emit(types.NewToolResultEvent(call.Name, result))
	return types.NewToolMessage(call.ID, call.Name, result)
}

// parseArguments decodes a tool call's JSON argument object. An empty
// argument string parses as an empty object.
func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// StringArg extracts a string argument by key, with ok reporting presence.
func StringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
