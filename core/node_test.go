package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNode_Run_PassesValuesThroughPhases(t *testing.T) {
	var gotPrep, gotExec any
	node := newTestNode(&TestNode{
		prep: func(_ context.Context, s Shared) (any, error) {
			return s["input"], nil
		},
		exec: func(_ context.Context, p any) (any, error) {
			return fmt.Sprintf("%v_processed", p), nil
		},
		post: func(_ context.Context, s Shared, p, e any) (Action, error) {
			gotPrep, gotExec = p, e
			s["output"] = e
			return ActionSuccess, nil
		},
	})

	shared := Shared{"input": "data"}
	action, err := node.Run(context.Background(), shared)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if action != ActionSuccess {
		t.Errorf("Run() action = %q, want %q", action, ActionSuccess)
	}
	if gotPrep != "data" || gotExec != "data_processed" {
		t.Errorf("Post got prep=%v exec=%v", gotPrep, gotExec)
	}
	if shared["output"] != "data_processed" {
		t.Errorf("shared[output] = %v", shared["output"])
	}
}

func TestNode_EmptyActionMeansDefault(t *testing.T) {
	node := newTestNode(&TestNode{
		post: func(context.Context, Shared, any, any) (Action, error) { return "", nil },
	})
	action, err := node.Run(context.Background(), Shared{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if action != ActionDefault {
		t.Errorf("action = %q, want %q", action, ActionDefault)
	}
}

func TestNode_Retries(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failures     int
		wantCalls    int
		wantFallback bool
		wantAttempt  int
		wantResult   any
	}{
		{name: "succeeds first try", maxRetries: 3, failures: 0, wantCalls: 1, wantAttempt: 0, wantResult: "ok"},
		{name: "succeeds on last attempt", maxRetries: 3, failures: 2, wantCalls: 3, wantAttempt: 2, wantResult: "ok"},
		{name: "exhausts attempts", maxRetries: 3, failures: 10, wantCalls: 3, wantFallback: true, wantAttempt: 2, wantResult: "fallback"},
		{name: "single attempt by default", maxRetries: 0, failures: 10, wantCalls: 1, wantFallback: true, wantAttempt: 0, wantResult: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, fallbacks := 0, 0
			var execAttempts []int
			var postAttempt int
			var result any

			node := newTestNode(&TestNode{
				exec: func(ctx context.Context, _ any) (any, error) {
					execAttempts = append(execAttempts, Attempt(ctx))
					calls++
					if calls <= tt.failures {
						return nil, errBoom
					}
					return "ok", nil
				},
				fallback: func(_ context.Context, _ any, err error) (any, error) {
					fallbacks++
					if !errors.Is(err, errBoom) {
						t.Errorf("fallback err = %v, want %v", err, errBoom)
					}
					return "fallback", nil
				},
				post: func(ctx context.Context, _ Shared, _, e any) (Action, error) {
					postAttempt = Attempt(ctx)
					result = e
					return ActionDefault, nil
				},
			}, WithMaxRetries(tt.maxRetries))

			if _, err := node.Run(context.Background(), Shared{}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("exec calls = %d, want %d", calls, tt.wantCalls)
			}
			for i, a := range execAttempts {
				if a != i {
					t.Errorf("exec attempt %d saw counter %d", i, a)
				}
			}
			if (fallbacks == 1) != tt.wantFallback || fallbacks > 1 {
				t.Errorf("fallback calls = %d, wantFallback %v", fallbacks, tt.wantFallback)
			}
			if postAttempt != tt.wantAttempt {
				t.Errorf("attempt seen by Post = %d, want %d", postAttempt, tt.wantAttempt)
			}
			if result != tt.wantResult {
				t.Errorf("result = %v, want %v", result, tt.wantResult)
			}
		})
	}
}

func TestNode_DefaultFallbackReturnsLastError(t *testing.T) {
	postCalled := false
	node := newTestNode(&TestNode{
		exec: func(context.Context, any) (any, error) { return nil, errBoom },
		post: func(context.Context, Shared, any, any) (Action, error) {
			postCalled = true
			return ActionDefault, nil
		},
	}, WithMaxRetries(2))

	action, err := node.Run(context.Background(), Shared{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want %v", err, errBoom)
	}
	if err != errBoom {
		t.Errorf("error was wrapped: %v", err)
	}
	if action != "" {
		t.Errorf("action = %q, want empty on error", action)
	}
	if postCalled {
		t.Error("Post ran after a terminal failure")
	}
}

func TestNode_FallbackErrorPropagates(t *testing.T) {
	errFallback := errors.New("fallback failed")
	node := newTestNode(&TestNode{
		exec: func(context.Context, any) (any, error) { return nil, errBoom },
		fallback: func(context.Context, any, error) (any, error) {
			return nil, errFallback
		},
	})
	if _, err := node.Run(context.Background(), Shared{}); !errors.Is(err, errFallback) {
		t.Fatalf("Run() error = %v, want %v", err, errFallback)
	}
}

func TestNode_ConditionalFallback(t *testing.T) {
	node := newTestNode(&TestNode{
		prep: func(_ context.Context, s Shared) (any, error) { return s["type"], nil },
		exec: func(context.Context, any) (any, error) { return nil, errBoom },
		fallback: func(_ context.Context, p any, err error) (any, error) {
			if p == "recoverable" {
				return "recovered", nil
			}
			return nil, err
		},
		post: func(_ context.Context, s Shared, _, e any) (Action, error) {
			s["result"] = e
			return ActionDefault, nil
		},
	})

	shared := Shared{"type": "recoverable"}
	if _, err := node.Run(context.Background(), shared); err != nil {
		t.Fatalf("recoverable item: %v", err)
	}
	if shared["result"] != "recovered" {
		t.Errorf("result = %v, want recovered", shared["result"])
	}

	if _, err := node.Run(context.Background(), Shared{"type": "fatal"}); !errors.Is(err, errBoom) {
		t.Errorf("fatal item error = %v, want %v", err, errBoom)
	}
}

func TestNode_PrepErrorSkipsExec(t *testing.T) {
	execCalled := false
	node := newTestNode(&TestNode{
		prep: func(context.Context, Shared) (any, error) { return nil, errBoom },
		exec: func(context.Context, any) (any, error) {
			execCalled = true
			return nil, nil
		},
	})
	if _, err := node.Run(context.Background(), Shared{}); !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v", err)
	}
	if execCalled {
		t.Error("Exec ran after Prep failed")
	}
}

func TestNode_PrepRunsOnceAcrossRetries(t *testing.T) {
	preps := 0
	node := newTestNode(&TestNode{
		prep: func(context.Context, Shared) (any, error) {
			preps++
			return nil, nil
		},
		exec: func(ctx context.Context, _ any) (any, error) {
			if Attempt(ctx) < 2 {
				return nil, errBoom
			}
			return "ok", nil
		},
	}, WithMaxRetries(3))

	if _, err := node.Run(context.Background(), Shared{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if preps != 1 {
		t.Errorf("Prep ran %d times, want 1", preps)
	}
}

func TestNode_WaitsBetweenAttempts(t *testing.T) {
	node := newTestNode(&TestNode{
		exec: func(context.Context, any) (any, error) { return nil, errBoom },
		fallback: func(context.Context, any, error) (any, error) {
			return "done", nil
		},
	}, WithMaxRetries(3), WithWait(20*time.Millisecond))

	start := time.Now()
	if _, err := node.Run(context.Background(), Shared{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Two waits: none after the last attempt.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("elapsed %v, want at least 40ms", elapsed)
	}
}

func TestNode_WaitStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	node := newTestNode(&TestNode{
		exec: func(context.Context, any) (any, error) {
			calls++
			cancel()
			return nil, errBoom
		},
	}, WithMaxRetries(5), WithWait(time.Hour))

	_, err := node.Run(ctx, Shared{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("exec calls = %d, want 1", calls)
	}
}

func TestNode_RunUsesOwnParams(t *testing.T) {
	var got any
	node := newTestNode(&TestNode{
		prep: func(ctx context.Context, _ Shared) (any, error) {
			got, _ = Param[string](ctx, "key")
			return nil, nil
		},
	})
	node.SetParams(Params{"key": "value"})

	if _, err := node.Run(context.Background(), Shared{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "value" {
		t.Errorf("param = %v, want value", got)
	}
}

func TestNode_RunWarnsAboutSuccessors(t *testing.T) {
	logger, logs := observedLogger()
	node := visitNode("a", ActionDefault, WithLogger(logger))
	node.Next(visitNode("b", ActionDefault))

	shared := Shared{}
	if _, err := node.Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := logs.FilterMessage("node won't run successors, use a Flow").Len(); n != 1 {
		t.Errorf("warnings = %d, want 1", n)
	}
	if visited := shared["visited"].([]string); len(visited) != 1 {
		t.Errorf("visited = %v, want only a", visited)
	}
}

func TestNewNode_Defaults(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{name: "default", want: 1},
		{name: "explicit", opts: []Option{WithMaxRetries(4)}, want: 4},
		{name: "zero clamps to one", opts: []Option{WithMaxRetries(0)}, want: 1},
		{name: "negative clamps to one", opts: []Option{WithMaxRetries(-3)}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newTestNode(&TestNode{}, tt.opts...)
			if got := node.MaxRetries(); got != tt.want {
				t.Errorf("MaxRetries() = %d, want %d", got, tt.want)
			}
		})
	}
}
