package cookbook

import (
	"context"
	"fmt"

	"github.com/alt-coder/brainyflow-go/core"
)

// arithmeticStep applies op to the "value" key.
type arithmeticStep struct {
	core.BaseNode[core.Shared, int, int]
	op func(int) int
}

func (s *arithmeticStep) Prep(_ context.Context, shared core.Shared) (int, error) {
	return core.GetOr(shared, "value", 0), nil
}

func (s *arithmeticStep) Exec(_ context.Context, v int) (int, error) {
	return s.op(v), nil
}

func (s *arithmeticStep) Post(_ context.Context, shared core.Shared, _, v int) (core.Action, error) {
	shared["value"] = v
	return core.ActionDefault, nil
}

func arithmeticNode(name string, op func(int) int) *core.Node[core.Shared, int, int] {
	return core.NewNode[core.Shared, int, int](&arithmeticStep{op: op}, core.WithName(name))
}

// NewArithmeticFlow builds set(5) -> add(3) -> multiply(2).
func NewArithmeticFlow() *core.Flow[core.Shared] {
	start := arithmeticNode("set", func(int) int { return 5 })
	core.Chain[core.Shared](start,
		arithmeticNode("add", func(v int) int { return v + 3 }),
		arithmeticNode("multiply", func(v int) int { return v * 2 }),
	)
	return core.NewFlow[core.Shared](start, core.WithName("arithmetic"))
}

func runArithmetic(ctx context.Context, deps Deps) error {
	shared := core.Shared{}
	if _, err := NewArithmeticFlow().Run(ctx, shared); err != nil {
		return err
	}
	fmt.Fprintf(deps.Out, "(5 + 3) * 2 = %d\n", shared["value"])
	return nil
}
