package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/client"
	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/transport"
	"github.com/alt-coder/brainyflow-go/llm"
	"go.uber.org/zap"
)

const (
	discoverTimeout = 10 * time.Second
	callTimeout     = 30 * time.Second
)

// MCPConfig lists the MCP servers to connect to.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `json:"servers" yaml:"servers"`
}

// MCPServerConfig describes a server started over stdio.
type MCPServerConfig struct {
	Command  string            `json:"command" yaml:"command"`
	Args     []string          `json:"args" yaml:"args"`
	Env      map[string]string `json:"env" yaml:"env"`
	Disabled bool              `json:"disabled" yaml:"disabled"`
}

type mcpTool struct {
	spec   llm.ToolSpec
	server string
}

// MCPManager connects to MCP servers and exposes their tools as an Executor.
type MCPManager struct {
	mu      sync.RWMutex
	config  MCPConfig
	clients map[string]*client.Client
	tools   map[string]mcpTool
	logger  *zap.Logger
}

// NewMCPManager creates a manager for config. Nothing is started until
// Initialize.
func NewMCPManager(config *MCPConfig, logger *zap.Logger) *MCPManager {
	cfg := MCPConfig{Servers: make(map[string]MCPServerConfig)}
	if config != nil {
		for name, srv := range config.Servers {
			cfg.Servers[name] = srv
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MCPManager{
		config:  cfg,
		clients: make(map[string]*client.Client),
		tools:   make(map[string]mcpTool),
		logger:  logger,
	}
}

// Initialize connects to every enabled server. A server that fails to start
// is logged and skipped.
func (m *MCPManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, srv := range m.config.Servers {
		if srv.Disabled {
			continue
		}
		if err := m.connect(ctx, name, srv); err != nil {
			m.logger.Warn("mcp server unavailable", zap.String("server", name), zap.Error(err))
		}
	}
	return nil
}

// connect must be called with m.mu held.
func (m *MCPManager) connect(ctx context.Context, name string, srv MCPServerConfig) error {
	if srv.Command == "" {
		return fmt.Errorf("server %s has no command", name)
	}

	var opts []transport.StdioClientTransportOption
	if len(srv.Env) > 0 {
		env := make([]string, 0, len(srv.Env))
		for k, v := range srv.Env {
			env = append(env, k+"="+v)
		}
		slices.Sort(env)
		opts = append(opts, transport.WithStdioClientOptionEnv(env...))
	}
	t, err := transport.NewStdioClientTransport(srv.Command, srv.Args, opts...)
	if err != nil {
		return fmt.Errorf("create stdio transport: %w", err)
	}

	cli, err := client.NewClient(t, client.WithClientInfo(&protocol.Implementation{
		Name:    "brainyflow",
		Version: "1.0.0",
	}))
	if err != nil {
		return fmt.Errorf("create mcp client: %w", err)
	}
	m.clients[name] = cli

	listCtx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()
	list, err := cli.ListTools(listCtx)
	if err != nil {
		m.logger.Warn("mcp tool discovery failed", zap.String("server", name), zap.Error(err))
		return nil
	}
	for _, tool := range list.Tools {
		spec := toolSpec(tool)
		m.tools[name+"."+tool.Name] = mcpTool{spec: spec, server: name}
		m.tools[tool.Name] = mcpTool{spec: spec, server: name}
	}
	m.logger.Debug("mcp server connected", zap.String("server", name), zap.Int("tools", len(list.Tools)))
	return nil
}

func toolSpec(tool *protocol.Tool) llm.ToolSpec {
	required := tool.InputSchema.Required
	if required == nil {
		required = []string{}
	}
	properties := make(map[string]any, len(tool.InputSchema.Properties))
	for name, prop := range tool.InputSchema.Properties {
		properties[name] = prop
	}
	return llm.ToolSpec{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

// Specs lists every discovered tool once, sorted by name.
func (m *MCPManager) Specs() []llm.ToolSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()

	specs := make([]llm.ToolSpec, 0, len(m.tools))
	for key, tool := range m.tools {
		if key == tool.spec.Name {
			specs = append(specs, tool.spec)
		}
	}
	slices.SortFunc(specs, func(a, b llm.ToolSpec) int { return strings.Compare(a.Name, b.Name) })
	return specs
}

// Has reports whether a tool with that bare or server-qualified name exists.
func (m *MCPManager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tools[name]
	return ok
}

// Execute calls the tool on the server that advertised it.
func (m *MCPManager) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	m.mu.RLock()
	tool, ok := m.tools[call.Name]
	var cli *client.Client
	if ok {
		cli = m.clients[tool.server]
	}
	m.mu.RUnlock()

	if !ok {
		return errorResult(call, fmt.Errorf("mcp tool %q not found", call.Name))
	}
	if cli == nil {
		return errorResult(call, fmt.Errorf("mcp server %q not connected", tool.server))
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	res, err := cli.CallTool(callCtx, &protocol.CallToolRequest{
		Name:      tool.spec.Name,
		Arguments: call.Args,
	})
	if err != nil {
		return errorResult(call, fmt.Errorf("mcp tool execution failed: %w", err))
	}
	return convertResult(call, res)
}

func convertResult(call llm.ToolCall, res *protocol.CallToolResult) llm.ToolResult {
	var parts []string
	for _, item := range res.Content {
		switch c := item.(type) {
		case *protocol.TextContent:
			parts = append(parts, c.Text)
		case *protocol.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes base64]", c.MimeType, len(c.Data)))
		}
	}
	return llm.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: strings.Join(parts, "\n"),
		IsError: res.IsError,
	}
}

// AddServer registers and connects a server.
func (m *MCPManager) AddServer(ctx context.Context, name string, srv MCPServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config.Servers[name] = srv
	if srv.Disabled {
		return nil
	}
	return m.connect(ctx, name, srv)
}

// RemoveServer disconnects a server and forgets its tools.
func (m *MCPManager) RemoveServer(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if cli, ok := m.clients[name]; ok {
		err = cli.Close()
		delete(m.clients, name)
	}
	for key, tool := range m.tools {
		if tool.server == name {
			delete(m.tools, key)
		}
	}
	delete(m.config.Servers, name)
	return err
}

// Close disconnects every server.
func (m *MCPManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, cli := range m.clients {
		if err := cli.Close(); err != nil {
			m.logger.Warn("closing mcp client", zap.String("server", name), zap.Error(err))
		}
	}
	m.clients = make(map[string]*client.Client)
	m.tools = make(map[string]mcpTool)
	return nil
}
