package cookbook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alt-coder/brainyflow-go/core"
)

// WordStats accumulates counts across the texts of a session.
type WordStats struct {
	Texts int
	Words int
}

// Average is the mean number of words per text.
func (s WordStats) Average() float64 {
	if s.Texts == 0 {
		return 0
	}
	return float64(s.Words) / float64(s.Texts)
}

// TextSession is the typed state shared by the word statistics nodes.
type TextSession struct {
	Text  string
	Stats WordStats

	in  *bufio.Scanner
	out io.Writer
}

// NewTextSession reads texts line by line from in and reports to out.
func NewTextSession(in io.Reader, out io.Writer) *TextSession {
	return &TextSession{in: bufio.NewScanner(in), out: out}
}

type textInput struct {
	core.BaseNode[*TextSession, string, struct{}]
}

func (textInput) Prep(_ context.Context, s *TextSession) (string, error) {
	fmt.Fprint(s.out, "Enter text (or 'q' to quit): ")
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "q", nil
	}
	return s.in.Text(), nil
}

func (textInput) Post(_ context.Context, s *TextSession, line string, _ struct{}) (core.Action, error) {
	if strings.TrimSpace(line) == "q" {
		return core.ActionStop, nil
	}
	s.Text = line
	s.Stats.Texts++
	return "count", nil
}

type wordCounter struct {
	core.BaseNode[*TextSession, string, int]
}

func (wordCounter) Prep(_ context.Context, s *TextSession) (string, error) {
	return s.Text, nil
}

func (wordCounter) Exec(_ context.Context, text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (wordCounter) Post(_ context.Context, s *TextSession, _ string, words int) (core.Action, error) {
	s.Stats.Words += words
	return "show", nil
}

type showStats struct {
	core.BaseNode[*TextSession, WordStats, struct{}]
}

func (showStats) Prep(_ context.Context, s *TextSession) (WordStats, error) {
	return s.Stats, nil
}

func (showStats) Post(_ context.Context, s *TextSession, stats WordStats, _ struct{}) (core.Action, error) {
	fmt.Fprintf(s.out, "\nStatistics:\n- Texts processed: %d\n- Total words: %d\n- Average words per text: %.1f\n\n",
		stats.Texts, stats.Words, stats.Average())
	return core.ActionContinue, nil
}

// NewCommunicationFlow loops input, count and show until the input is "q" or
// runs out, which stops the flow.
func NewCommunicationFlow() *core.Flow[*TextSession] {
	input := core.NewNode[*TextSession, string, struct{}](textInput{}, core.WithName("text-input"))
	counter := core.NewNode[*TextSession, string, int](wordCounter{}, core.WithName("word-counter"))
	show := core.NewNode[*TextSession, WordStats, struct{}](showStats{}, core.WithName("show-stats"))

	input.On("count").To(counter)
	counter.On("show").To(show)
	show.On(core.ActionContinue).To(input)
	return core.NewFlow[*TextSession](input, core.WithName("communication"))
}

func runCommunication(ctx context.Context, deps Deps) error {
	in := deps.In
	if deps.Input != "" {
		in = strings.NewReader(deps.Input)
	}
	session := NewTextSession(in, deps.Out)
	if _, err := NewCommunicationFlow().Run(ctx, session); err != nil {
		return err
	}
	fmt.Fprintf(deps.Out, "\nGoodbye! %d texts, %d words.\n", session.Stats.Texts, session.Stats.Words)
	return nil
}
