// Package tools defines the capability registry the orchestration graph
// exposes to workers, and the executor that resolves a model's tool-call
// requests into tool-role messages.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/entrhq/compass/pkg/llm"
)

// Tool represents a capability a worker can use during execution. Tools are
// invoked through structured tool calls carrying JSON arguments.
type Tool interface {
	// Name returns the unique identifier for this tool (e.g. "crm_lookup").
	Name() string

	// Description returns a human-readable description of what this tool
	// does, surfaced to the model.
	Description() string

	// Schema returns the JSON Schema object for this tool's arguments.
	Schema() map[string]any

	// Execute runs the tool with parsed arguments and returns result text.
	// Errors are converted to tool-result error messages by the executor;
	// they are recoverable data, not faults.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ObjectSchema builds a JSON Schema object from property definitions and the
// list of required property names.
func ObjectSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty is a shorthand for a string-typed schema property.
func StringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// Registry maps tool names to tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry with the given tools.
func NewRegistry(toolList ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(toolList))}
	for _, t := range toolList {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if t.Name() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	return nil
}

// Get retrieves a tool by name. The second return reports whether it exists.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool definitions to bind to a model invocation,
// in sorted name order for deterministic prompts.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return defs
}
