package types

// MessageRole identifies the author of a message in a conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // RoleSystem is the role for system prompts.
	RoleUser      MessageRole = "user"      // RoleUser is the role for end-user messages.
	RoleAssistant MessageRole = "assistant" // RoleAssistant is the role for model-generated messages.
	RoleTool      MessageRole = "tool"      // RoleTool is the role for tool execution results.
)

// ToolCall is a structured request from a model response to execute a named
// capability. Arguments is a JSON-encoded object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is a single entry in a conversation. Within a turn messages are
// append-only and never reordered.
type Message struct {
	Role    MessageRole
	Content string

	// ToolCalls holds pending tool invocations requested by an assistant
	// message. Only populated on assistant messages.
	ToolCalls []ToolCall

	// ToolCallID links a tool-role message back to the assistant tool call
	// it answers. ToolName is the capability that produced the result.
	ToolCallID string
	ToolName   string

	// IsError marks a tool-role message whose content is an error string
	// rather than a successful result.
	IsError bool
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user-role message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant-role message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a tool-role message carrying the result of a tool call.
func NewToolMessage(toolCallID, toolName, content string) *Message {
	return &Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
	}
}

// NewToolErrorMessage creates a tool-role message for a failed tool call.
// Tool failures are recoverable data visible to the next generation pass,
// not propagated faults.
func NewToolErrorMessage(toolCallID, toolName, errText string) *Message {
	m := NewToolMessage(toolCallID, toolName, errText)
	m.IsError = true
	return m
}

// HasToolCalls reports whether this message carries pending tool-call requests.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
