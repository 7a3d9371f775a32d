package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler computes a reply from the conversation. It lets tests script
// replies that depend on the prompt.
type Handler func(messages []Message) (Message, error)

// MockProvider implements Provider for tests and offline runs.
// It provides configurable response patterns and error simulation capabilities
// and is safe for use by parallel batch nodes.
type MockProvider struct {
	mu sync.Mutex

	name             string
	responses        []Message
	responseIndex    int
	patterns         map[string]string // Pattern-based responses
	handler          Handler
	simulateError    bool
	errorMessage     string
	callsBeforeError int
	calls            [][]Message
	tools            []ToolSpec
}

// NewMockProvider creates a new mock LLM provider that echoes the last user
// message until responses are configured.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name:     name,
		patterns: make(map[string]string),
	}
}

// CallLLM simulates an LLM call and returns configured responses or errors
func (m *MockProvider) CallLLM(ctx context.Context, messages []Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	m.mu.Lock()
	handler := m.handler
	reply, err := m.respond(messages)
	m.mu.Unlock()

	if handler != nil && err == nil {
		return handler(messages)
	}
	return reply, err
}

// respond records the call and picks the scripted reply. A nil error with a
// handler set means the handler decides. Callers hold m.mu.
func (m *MockProvider) respond(messages []Message) (Message, error) {
	m.calls = append(m.calls, append([]Message(nil), messages...))

	// Check for delayed error simulation
	if m.callsBeforeError > 0 && len(m.calls) >= m.callsBeforeError {
		msg := m.errorMessage
		if msg == "" {
			msg = "delayed simulated error"
		}
		return Message{}, errors.New(msg)
	}

	// Simulate immediate error if configured
	if m.simulateError {
		if m.errorMessage != "" {
			return Message{}, errors.New(m.errorMessage)
		}
		return Message{}, fmt.Errorf("simulated API error from %s", m.name)
	}

	if m.handler != nil {
		return Message{}, nil
	}

	// Check for pattern-based responses first
	if len(m.patterns) > 0 && len(messages) > 0 {
		lastMessage := messages[len(messages)-1]
		if lastMessage.Role == RoleUser {
			if response, ok := m.matchPattern(lastMessage.Content); ok {
				return Message{Role: RoleAssistant, Content: response}, nil
			}
		}
	}

	if len(m.responses) > 0 {
		response := m.responses[m.responseIndex]
		// Cycle through responses for multiple calls
		m.responseIndex = (m.responseIndex + 1) % len(m.responses)
		if response.Role == "" {
			response.Role = RoleAssistant
		}
		return response, nil
	}

	if len(messages) > 0 && messages[len(messages)-1].Role == RoleUser {
		return Message{
			Role:    RoleAssistant,
			Content: "Mock response to: " + messages[len(messages)-1].Content,
		}, nil
	}
	return Message{Role: RoleAssistant, Content: "Mock response from " + m.name}, nil
}

// matchPattern picks the longest pattern contained in input, so results do not
// depend on map order.
func (m *MockProvider) matchPattern(input string) (string, bool) {
	input = strings.ToLower(input)
	keys := make([]string, 0, len(m.patterns))
	for k := range m.patterns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(input, strings.ToLower(k)) {
			return m.patterns[k], true
		}
	}
	return "", false
}

// Name returns the mock provider name
func (m *MockProvider) Name() string {
	return m.name
}

// SetResponses configures the text responses that the mock will cycle through
func (m *MockProvider) SetResponses(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = m.responses[:0]
	for _, r := range responses {
		m.responses = append(m.responses, Message{Role: RoleAssistant, Content: r})
	}
	m.responseIndex = 0
}

// AddResponse appends a full message, tool calls included, to the response list.
func (m *MockProvider) AddResponse(message Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, message)
}

// SetResponsePattern configures responses based on input keywords, for
// example {"hello": "Hi there!", "bye": "Goodbye!"}.
func (m *MockProvider) SetResponsePattern(patterns map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = make(map[string]string, len(patterns))
	for k, v := range patterns {
		m.patterns[k] = v
	}
}

// SetHandler installs a function that computes every reply. It takes
// precedence over patterns and scripted responses.
func (m *MockProvider) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// SetError configures the mock to simulate an error on every call
func (m *MockProvider) SetError(shouldError bool, errorMessage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulateError = shouldError
	m.errorMessage = errorMessage
}

// SetDelayedError makes the call number callsBeforeError, and every later call, fail.
func (m *MockProvider) SetDelayedError(callsBeforeError int, errorMessage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callsBeforeError = callsBeforeError
	m.errorMessage = errorMessage
}

// ClearError removes any error simulation
func (m *MockProvider) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulateError = false
	m.errorMessage = ""
	m.callsBeforeError = 0
}

// Reset resets the mock provider to initial state
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = nil
	m.responseIndex = 0
	m.patterns = make(map[string]string)
	m.handler = nil
	m.simulateError = false
	m.errorMessage = ""
	m.callsBeforeError = 0
	m.calls = nil
}

// BindTools records the advertised tools and returns the mock itself.
func (m *MockProvider) BindTools(tools []ToolSpec) Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append([]ToolSpec(nil), tools...)
	return m
}

// Tools returns the tools bound last.
func (m *MockProvider) Tools() []ToolSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools
}

// CallCount returns the number of times CallLLM has been called
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the conversations received so far, oldest first.
func (m *MockProvider) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}
