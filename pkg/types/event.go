package types

// AgentEventType defines the type of event emitted during a turn.
type AgentEventType string

const (
	EventTypeTurnStart      AgentEventType = "turn_start"      // EventTypeTurnStart indicates a turn has begun processing.
	EventTypeContent        AgentEventType = "content"         // EventTypeContent carries partial or final response text.
	EventTypeTurnEnd        AgentEventType = "turn_end"        // EventTypeTurnEnd indicates the turn has finished processing.
	EventTypeError          AgentEventType = "error"           // EventTypeError indicates a turn-level failure.
	EventTypeToolCall       AgentEventType = "tool_call"       // EventTypeToolCall indicates a tool is being invoked.
	EventTypeToolResult     AgentEventType = "tool_result"     // EventTypeToolResult indicates a successful tool result.
	EventTypeToolError      AgentEventType = "tool_error"      // EventTypeToolError indicates a tool call failed.
	EventTypeTokenUsage     AgentEventType = "token_usage"     // EventTypeTokenUsage carries token accounting for a node invocation.
	EventTypeNodeTransition AgentEventType = "node_transition" // EventTypeNodeTransition indicates the control loop moved to a new node.
)

// AgentEvent represents an event emitted while a turn executes. The transport
// layer consumes these to stream output to the caller.
type AgentEvent struct {
	// Type indicates the kind of event.
	Type AgentEventType

	// Content holds text for content events.
	Content string

	// IsFinal marks the last content event of a turn.
	IsFinal bool

	// Node is the node identifier for node transition events.
	Node string

	// ToolName is the name of the tool being called (for tool events).
	ToolName string

	// ToolInput is the parsed arguments for tool call events.
	ToolInput map[string]any

	// ToolOutput is the result text for tool result events.
	ToolOutput string

	// Usage contains token accounting for token usage events.
	Usage *TokenUsage

	// Error contains error information for error events.
	Error error
}

// EventHandler receives events as a turn executes. Implementations must be
// safe to call from the goroutine running the turn.
type EventHandler func(*AgentEvent)

// NewTurnStartEvent creates a turn start event.
func NewTurnStartEvent() *AgentEvent {
	return &AgentEvent{Type: EventTypeTurnStart}
}

// NewContentEvent creates a content event with partial or final text.
func NewContentEvent(content string, isFinal bool) *AgentEvent {
	return &AgentEvent{Type: EventTypeContent, Content: content, IsFinal: isFinal}
}

// NewTurnEndEvent creates a turn end event.
func NewTurnEndEvent() *AgentEvent {
	return &AgentEvent{Type: EventTypeTurnEnd}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err error) *AgentEvent {
	return &AgentEvent{Type: EventTypeError, Error: err}
}

// NewToolCallEvent creates a tool call event.
func NewToolCallEvent(toolName string, input map[string]any) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolCall, ToolName: toolName, ToolInput: input}
}

// NewToolResultEvent creates a tool result event.
func NewToolResultEvent(toolName, output string) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolResult, ToolName: toolName, ToolOutput: output}
}

// NewToolErrorEvent creates a tool error event.
func NewToolErrorEvent(toolName string, err error) *AgentEvent {
	return &AgentEvent{Type: EventTypeToolError, ToolName: toolName, Error: err}
}

// NewTokenUsageEvent creates a token usage event.
func NewTokenUsageEvent(prompt, completion, total int) *AgentEvent {
	return &AgentEvent{
		Type: EventTypeTokenUsage,
		Usage: &TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      total,
		},
	}
}

// NewNodeTransitionEvent creates a node transition event.
func NewNodeTransitionEvent(node string) *AgentEvent {
	return &AgentEvent{Type: EventTypeNodeTransition, Node: node}
}
