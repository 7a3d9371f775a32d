package cookbook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
)

const (
	chatWelcome       = "Welcome to brainyflow chat! Type 'exit' to quit."
	chatApology       = "I'm sorry, I encountered an error and couldn't process your request. Please try again."
	defaultMaxHistory = 50
)

// ChatSession is the typed state of the chat loop.
type ChatSession struct {
	Messages []llm.Message
	// MaxHistory bounds Messages; older turns are dropped first.
	MaxHistory int

	in       *bufio.Scanner
	out      io.Writer
	welcomed bool
}

// NewChatSession reads user turns from in and prints replies to out.
func NewChatSession(in io.Reader, out io.Writer) *ChatSession {
	return &ChatSession{MaxHistory: defaultMaxHistory, in: bufio.NewScanner(in), out: out}
}

// readTurn returns the next non-blank line, or ok=false on exit or end of input.
func (s *ChatSession) readTurn() (string, bool, error) {
	for {
		fmt.Fprint(s.out, "You: ")
		if !s.in.Scan() {
			return "", false, s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		switch {
		case strings.EqualFold(line, "exit"):
			return "", false, nil
		case line == "":
			fmt.Fprintln(s.out, "Please enter a message or 'exit' to quit.")
		default:
			return line, true, nil
		}
	}
}

type chatTurn struct {
	core.BaseNode[*ChatSession, []llm.Message, string]
	provider llm.Provider
}

func (c *chatTurn) Prep(_ context.Context, s *ChatSession) ([]llm.Message, error) {
	if !s.welcomed {
		fmt.Fprintln(s.out, chatWelcome)
		s.welcomed = true
	}
	line, ok, err := s.readTurn()
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if !ok {
		return nil, nil
	}
	s.Messages = append(s.Messages, llm.UserMessage(line))
	return s.Messages, nil
}

func (c *chatTurn) Exec(ctx context.Context, history []llm.Message) (string, error) {
	if len(history) == 0 {
		return "", nil
	}
	reply, err := c.provider.CallLLM(ctx, history)
	if err != nil {
		return "", fmt.Errorf("llm call failed: %w", err)
	}
	return reply.Content, nil
}

// ExecFallback keeps the conversation going after a failed turn.
func (c *chatTurn) ExecFallback(context.Context, []llm.Message, error) (string, error) {
	return chatApology, nil
}

func (c *chatTurn) Post(_ context.Context, s *ChatSession, history []llm.Message, reply string) (core.Action, error) {
	if len(history) == 0 {
		fmt.Fprintln(s.out, "Goodbye!")
		return core.ActionStop, nil
	}
	fmt.Fprintf(s.out, "Assistant: %s\n\n", reply)
	s.Messages = append(s.Messages, llm.Message{Role: llm.RoleAssistant, Content: reply})
	if s.MaxHistory > 0 && len(s.Messages) > s.MaxHistory {
		s.Messages = s.Messages[len(s.Messages)-s.MaxHistory:]
	}
	return core.ActionContinue, nil
}

// NewChatFlow is a single node that loops on itself, one user turn per visit,
// until the user types exit or input ends.
func NewChatFlow(provider llm.Provider) *core.Flow[*ChatSession] {
	turn := core.NewNode[*ChatSession, []llm.Message, string](&chatTurn{provider: provider},
		core.WithName("chat"),
		core.WithMaxRetries(3),
	)
	turn.On(core.ActionContinue).To(turn)
	return core.NewFlow[*ChatSession](turn, core.WithName("chat"))
}

func runChat(ctx context.Context, deps Deps) error {
	in := deps.In
	if deps.Input != "" {
		in = strings.NewReader(deps.Input)
	}
	_, err := NewChatFlow(deps.Provider).Run(ctx, NewChatSession(in, deps.Out))
	return err
}
