package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// arithNode applies op to shared["current"].
type arithNode struct {
	BaseNode[Shared, int, int]
	op func(int) int
}

func (n *arithNode) Prep(_ context.Context, s Shared) (int, error) {
	return GetOr(s, "current", 0), nil
}

func (n *arithNode) Exec(_ context.Context, current int) (int, error) {
	return n.op(current), nil
}

func (n *arithNode) Post(_ context.Context, s Shared, _, result int) (Action, error) {
	s["current"] = result
	return ActionDefault, nil
}

func arith(op func(int) int) *Node[Shared, int, int] {
	return NewNode[Shared, int, int](&arithNode{op: op})
}

func visited(s Shared) []string {
	v, _ := Get[[]string](s, "visited")
	return v
}

func TestFlow_VisitsChainInOrder(t *testing.T) {
	a, b, c := visitNode("A", ActionDefault), visitNode("B", ActionDefault), visitNode("C", ActionDefault)
	a.Next(b).AddSuccessor(c)

	shared := Shared{}
	if _, err := NewFlow[Shared](a).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, visited(shared)); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}
}

func TestFlow_Arithmetic(t *testing.T) {
	start := Chain[Shared](
		arith(func(int) int { return 5 }),
		arith(func(v int) int { return v + 3 }),
		arith(func(v int) int { return v * 2 }),
	)

	shared := Shared{}
	if _, err := NewFlow[Shared](start).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if shared["current"] != 16 {
		t.Errorf("current = %v, want 16", shared["current"])
	}
}

func TestFlow_CyclicGraphTerminates(t *testing.T) {
	for _, m := range []int{0, 1, 4} {
		check := newTestNode(&TestNode{
			post: func(_ context.Context, s Shared, _, _ any) (Action, error) {
				s["checks"] = GetOr(s, "checks", 0) + 1
				if GetOr(s, "n", 0) > 0 {
					return "positive", nil
				}
				return "negative", nil
			},
		}, WithName("check"))
		step := newTestNode(&TestNode{
			post: func(_ context.Context, s Shared, _, _ any) (Action, error) {
				s["n"] = GetOr(s, "n", 0) - 1
				return ActionDefault, nil
			},
		}, WithName("step"))
		end := visitNode("end", ActionDefault)

		check.On("positive").To(step).AddSuccessor(check)
		check.On("negative").To(end)

		shared := Shared{"n": m}
		if _, err := NewFlow[Shared](check).Run(context.Background(), shared); err != nil {
			t.Fatalf("m=%d: Run() error = %v", m, err)
		}
		if got := shared["checks"]; got != m+1 {
			t.Errorf("m=%d: check visits = %v, want %d", m, got, m+1)
		}
		if diff := cmp.Diff([]string{"end"}, visited(shared)); diff != "" {
			t.Errorf("m=%d: visited mismatch (-want +got):\n%s", m, diff)
		}
	}
}

func TestFlow_MissingLabelEndsWithWarning(t *testing.T) {
	logger, logs := observedLogger()
	a := visitNode("A", "unknown")
	a.On("yes").To(visitNode("B", ActionDefault))

	shared := Shared{}
	action, err := NewFlow[Shared](a, WithLogger(logger)).Run(context.Background(), shared)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if action != ActionDefault {
		t.Errorf("action = %q, want %q", action, ActionDefault)
	}
	if diff := cmp.Diff([]string{"A"}, visited(shared)); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
	if logs.FilterMessage("flow ends: action not found in successors").Len() != 1 {
		t.Errorf("expected one missing-successor warning, got %v", logs.All())
	}
}

func TestFlow_TerminalNodeIsSilent(t *testing.T) {
	logger, logs := observedLogger()
	a := visitNode("A", "whatever")
	if _, err := NewFlow[Shared](a, WithLogger(logger)).Run(context.Background(), Shared{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected logs: %v", logs.All())
	}
}

func TestFlow_StopActionHalts(t *testing.T) {
	logger, logs := observedLogger()
	a := visitNode("A", ActionStop)
	a.Next(visitNode("B", ActionDefault))

	shared := Shared{}
	if _, err := NewFlow[Shared](a, WithLogger(logger)).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, visited(shared)); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
	if logs.Len() != 0 {
		t.Errorf("stop should not warn: %v", logs.All())
	}
}

func TestFlow_ErrorAbortsRun(t *testing.T) {
	a := visitNode("A", ActionDefault)
	b := newTestNode(&TestNode{
		exec: func(context.Context, any) (any, error) { return nil, errBoom },
	}, WithMaxRetries(2))
	c := visitNode("C", ActionDefault)
	Chain[Shared](a, b, c)

	postCalled := false
	flow := NewFlow[Shared](a).SetLifecycle(&TestFlowHooks{
		post: func(context.Context, Shared, any) (Action, error) {
			postCalled = true
			return ActionDefault, nil
		},
	})

	shared := Shared{}
	action, err := flow.Run(context.Background(), shared)
	if err != errBoom {
		t.Fatalf("Run() error = %v, want the raw node error", err)
	}
	if action != "" {
		t.Errorf("action = %q, want empty", action)
	}
	if diff := cmp.Diff([]string{"A"}, visited(shared)); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
	if postCalled {
		t.Error("flow Post ran after a failure")
	}
}

func TestFlow_LifecycleHooks(t *testing.T) {
	var gotPrep any
	flow := NewFlow[Shared](visitNode("A", ActionDefault)).SetLifecycle(&TestFlowHooks{
		prep: func(_ context.Context, s Shared) (any, error) {
			return "prepared", nil
		},
		post: func(_ context.Context, s Shared, p any) (Action, error) {
			gotPrep = p
			if len(visited(s)) != 1 {
				t.Error("Post ran before orchestration finished")
			}
			return "finished", nil
		},
	})

	action, err := flow.Run(context.Background(), Shared{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if action != "finished" {
		t.Errorf("action = %q, want finished", action)
	}
	if gotPrep != "prepared" {
		t.Errorf("Post got prep = %v", gotPrep)
	}
}

func TestFlow_FlowPrepErrorSkipsGraph(t *testing.T) {
	flow := NewFlow[Shared](visitNode("A", ActionDefault)).SetLifecycle(&TestFlowHooks{
		prep: func(context.Context, Shared) (any, error) { return nil, errBoom },
	})
	shared := Shared{}
	if _, err := flow.Run(context.Background(), shared); !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want %v", err, errBoom)
	}
	if len(visited(shared)) != 0 {
		t.Error("graph ran after flow Prep failed")
	}
}

func TestFlow_NestedRoutesOnInnerPost(t *testing.T) {
	inner := NewFlow[Shared](Chain[Shared](
		visitNode("inner1", ActionDefault),
		visitNode("inner2", ActionDefault),
	), WithName("inner")).SetLifecycle(&TestFlowHooks{
		post: func(_ context.Context, s Shared, _ any) (Action, error) {
			return "inner_done", nil
		},
	})
	inner.On("inner_done").To(visitNode("after", ActionDefault))
	inner.Next(visitNode("wrong", ActionDefault))

	shared := Shared{}
	if _, err := NewFlow[Shared](inner).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"inner1", "inner2", "after"}
	if diff := cmp.Diff(want, visited(shared)); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
}

func TestFlow_FlowsChainLikeNodes(t *testing.T) {
	flow1 := NewFlow[Shared](Chain[Shared](visitNode("a", ActionDefault), visitNode("b", ActionDefault)))
	flow2 := NewFlow[Shared](visitNode("c", ActionDefault))
	flow1.Next(flow2)

	shared := Shared{}
	if _, err := NewFlow[Shared](flow1).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, visited(shared)); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
}

func TestFlow_NestedErrorPropagates(t *testing.T) {
	failing := newTestNode(&TestNode{
		exec: func(context.Context, any) (any, error) { return nil, errBoom },
	})
	inner := NewFlow[Shared](failing)
	inner.Next(visitNode("after", ActionDefault))

	shared := Shared{}
	_, err := NewFlow[Shared](inner).Run(context.Background(), shared)
	if err != errBoom {
		t.Fatalf("Run() error = %v, want the raw node error", err)
	}
	if len(visited(shared)) != 0 {
		t.Errorf("visited = %v, want none", visited(shared))
	}
}

func TestFlow_SupervisorLoop(t *testing.T) {
	worker := newTestNode(&TestNode{
		post: func(_ context.Context, s Shared, _, _ any) (Action, error) {
			s["drafts"] = GetOr(s, "drafts", 0) + 1
			return ActionDefault, nil
		},
	}, WithName("worker"))
	supervisor := newTestNode(&TestNode{
		post: func(_ context.Context, s Shared, _, _ any) (Action, error) {
			if GetOr(s, "drafts", 0) < 3 {
				return ActionRetry, nil
			}
			return ActionSuccess, nil
		},
	}, WithName("supervisor"))
	worker.Next(supervisor)
	supervisor.On(ActionRetry).To(worker)
	supervisor.On(ActionSuccess).To(visitNode("publish", ActionDefault))

	shared := Shared{}
	if _, err := NewFlow[Shared](worker).Run(context.Background(), shared); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if shared["drafts"] != 3 {
		t.Errorf("drafts = %v, want 3", shared["drafts"])
	}
	if diff := cmp.Diff([]string{"publish"}, visited(shared)); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
}

func TestFlow_ParamsBinding(t *testing.T) {
	var seen []Params
	probe := newTestNode(&TestNode{
		prep: func(ctx context.Context, _ Shared) (any, error) {
			seen = append(seen, ParamsFrom(ctx).Clone())
			return nil, nil
		},
	}, WithParams(Params{"own": true}))

	inner := NewFlow[Shared](probe, WithParams(Params{"a": 1, "b": 1}))
	outer := NewFlow[Shared](inner, WithParams(Params{"b": 2, "c": 3}))

	if _, err := outer.Run(context.Background(), Shared{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []Params{{"a": 1, "b": 2, "c": 3}}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Params{"own": true}, probe.Params()); diff != "" {
		t.Errorf("node params were modified (-want +got):\n%s", diff)
	}
}

func TestFlow_ExecIsUnsupported(t *testing.T) {
	flow := NewFlow[Shared](visitNode("A", ActionDefault))
	if _, err := flow.Exec(context.Background(), nil); !errors.Is(err, ErrFlowExec) {
		t.Errorf("Exec() error = %v, want %v", err, ErrFlowExec)
	}
}

func TestFlow_NoStart(t *testing.T) {
	if _, err := NewFlow[Shared](nil).Run(context.Background(), Shared{}); !errors.Is(err, ErrNoStart) {
		t.Errorf("Run() error = %v, want %v", err, ErrNoStart)
	}
}

func TestFlow_ReusableAcrossRuns(t *testing.T) {
	flow := NewFlow[Shared](Chain[Shared](visitNode("A", ActionDefault), visitNode("B", ActionDefault)))
	for i := 0; i < 3; i++ {
		shared := Shared{}
		if _, err := flow.Run(context.Background(), shared); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if diff := cmp.Diff([]string{"A", "B"}, visited(shared)); diff != "" {
			t.Errorf("run %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

type tally struct{ hits int }

type tallyNode struct {
	BaseNode[*tally, int, int]
}

func (tallyNode) Prep(_ context.Context, s *tally) (int, error) { return s.hits, nil }

func (tallyNode) Exec(_ context.Context, hits int) (int, error) { return hits + 1, nil }

func (tallyNode) Post(_ context.Context, s *tally, _, hits int) (Action, error) {
	s.hits = hits
	return ActionDefault, nil
}

func TestFlow_TypedState(t *testing.T) {
	start := Chain[*tally](
		NewNode[*tally, int, int](tallyNode{}),
		NewNode[*tally, int, int](tallyNode{}),
		NewNode[*tally, int, int](tallyNode{}),
	)
	state := &tally{}
	if _, err := NewFlow[*tally](start).Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.hits != 3 {
		t.Errorf("hits = %d, want 3", state.hits)
	}
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestFlow_StepSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	a := visitNode("A", "go")
	a.On("go").To(visitNode("B", ActionDefault))
	flow := NewFlow[Shared](a, WithName("traced"), WithTracer(provider.Tracer("test")))

	if _, err := flow.Run(context.Background(), Shared{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	wantNodes := []string{"A", "B"}
	wantActions := []string{"go", "default"}
	var runID string
	for i, span := range spans {
		if span.Name() != "brainyflow.step" {
			t.Errorf("span %d name = %q", i, span.Name())
		}
		if v, _ := spanAttr(span, "brainyflow.node"); v.AsString() != wantNodes[i] {
			t.Errorf("span %d node = %q, want %q", i, v.AsString(), wantNodes[i])
		}
		if v, _ := spanAttr(span, "brainyflow.action"); v.AsString() != wantActions[i] {
			t.Errorf("span %d action = %q, want %q", i, v.AsString(), wantActions[i])
		}
		if v, _ := spanAttr(span, "brainyflow.flow"); v.AsString() != "traced" {
			t.Errorf("span %d flow = %q", i, v.AsString())
		}
		if v, _ := spanAttr(span, "brainyflow.step"); v.AsInt64() != int64(i) {
			t.Errorf("span %d step = %d", i, v.AsInt64())
		}
		id, _ := spanAttr(span, "brainyflow.run_id")
		if i == 0 {
			runID = id.AsString()
		} else if id.AsString() != runID {
			t.Errorf("run id changed within a run: %q vs %q", id.AsString(), runID)
		}
	}
	if runID == "" {
		t.Error("missing run id")
	}
}

func TestFlow_StepSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	failing := newTestNode(&TestNode{
		exec: func(context.Context, any) (any, error) { return nil, errBoom },
	}, WithMaxRetries(3))
	flow := NewFlow[Shared](failing, WithTracer(provider.Tracer("test")))

	if _, err := flow.Run(context.Background(), Shared{}); !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v", err)
	}
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status().Code)
	}
	retries := 0
	for _, ev := range spans[0].Events() {
		if ev.Name == "retry" {
			retries++
		}
	}
	if retries != 2 {
		t.Errorf("retry events = %d, want 2", retries)
	}
}
