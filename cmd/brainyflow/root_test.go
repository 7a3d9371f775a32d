package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alt-coder/brainyflow-go/internal/config"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{config.EnvProvider, config.EnvModel, config.EnvConcurrency,
		config.EnvLogLevel, config.EnvLogFormat, config.EnvTraceEndpoint} {
		t.Setenv(key, "")
	}
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	for _, want := range []string{"arithmetic", "supervisor", "llm"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{name: "local recipe", args: []string{"run", "arithmetic"}, want: "(5 + 3) * 2 = 16"},
		{name: "mock provider", args: []string{"run", "hello", "--provider", "mock", "-q", "hi there"}, want: "Answer: Mock response to: hi there"},
		{name: "stdin", stdin: "a b c\nq\n", args: []string{"run", "communication"}, want: "Total words: 3"},
		{name: "concurrency flag", args: []string{"run", "batchflow", "--concurrency", "2", "--log-format", "json"}, want: "triple"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("run error = %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte("provider: nobody\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown recipe", args: []string{"run", "nope"}, wantErr: "unknown recipe"},
		{name: "bad provider flag", args: []string{"run", "arithmetic", "--provider", "claude"}, wantErr: "invalid config"},
		{name: "bad config file", args: []string{"run", "arithmetic", "--config", cfgPath}, wantErr: "invalid config"},
		{name: "missing arg", args: []string{"run"}, wantErr: "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
