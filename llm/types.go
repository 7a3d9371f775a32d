package llm

import "context"

// Message represents a generic chat message that can be used across different LLM providers
type Message struct {
	Role        string // "user", "assistant", "system"
	Content     string // The actual message content
	Media       []byte
	MimeType    string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult answers the ToolCall with the same ID.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Provider defines the contract that all LLM implementations must follow.
type Provider interface {
	// CallLLM sends messages to the LLM and returns the response
	CallLLM(ctx context.Context, messages []Message) (Message, error)

	// Name returns the name/identifier of the LLM provider
	Name() string
}

// ToolSpec describes a tool the model may call. Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolBinder is implemented by providers that can advertise tools to the model.
type ToolBinder interface {
	// BindTools returns a provider that sends tools with every request.
	BindTools(tools []ToolSpec) Provider
}

const (
	// RoleSystem is used for system-level messages
	RoleSystem = "system"
	// RoleUser is used for user messages
	RoleUser = "user"
	// RoleAssistant is used for assistant messages
	RoleAssistant = "assistant"
	// RoleTool carries tool results back to the model
	RoleTool = "tool"
)

// UserMessage builds a plain user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// SystemMessage builds a system instruction.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Ask sends a single user prompt and returns the text of the reply.
func Ask(ctx context.Context, p Provider, prompt string) (string, error) {
	resp, err := p.CallLLM(ctx, []Message{UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
