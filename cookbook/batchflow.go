package cookbook

import (
	"context"
	"fmt"
	"sort"

	"github.com/alt-coder/brainyflow-go/core"
)

// scaleStep multiplies shared["values"] by the "factor" param and files the
// result under the "label" param.
type scaleStep struct {
	core.BaseNode[core.Shared, []int, []int]
}

func (s *scaleStep) Prep(_ context.Context, shared core.Shared) ([]int, error) {
	return core.GetOr[[]int](shared, "values", nil), nil
}

func (s *scaleStep) Exec(ctx context.Context, values []int) ([]int, error) {
	factor, ok := core.Param[int](ctx, "factor")
	if !ok {
		return nil, fmt.Errorf("missing factor param")
	}
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = v * factor
	}
	return out, nil
}

func (s *scaleStep) Post(ctx context.Context, shared core.Shared, _, scaled []int) (core.Action, error) {
	label, _ := core.Param[string](ctx, "label")
	results, _ := core.Get[map[string][]int](shared, "scaled")
	if results == nil {
		results = make(map[string][]int)
		shared["scaled"] = results
	}
	results[label] = scaled
	return core.ActionDefault, nil
}

// factorBatch yields one param set per factor.
type factorBatch struct {
	factors map[string]int
}

func (b factorBatch) Prep(context.Context, core.Shared) ([]core.Params, error) {
	labels := make([]string, 0, len(b.factors))
	for l := range b.factors {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	sets := make([]core.Params, 0, len(labels))
	for _, l := range labels {
		sets = append(sets, core.Params{"label": l, "factor": b.factors[l]})
	}
	return sets, nil
}

func (b factorBatch) Post(context.Context, core.Shared, []core.Params) (core.Action, error) {
	return core.ActionDefault, nil
}

// NewBatchFlow runs the scaling graph once per entry of factors.
func NewBatchFlow(factors map[string]int) *core.BatchFlow[core.Shared] {
	scale := core.NewNode[core.Shared, []int, []int](&scaleStep{}, core.WithName("scale"))
	return core.NewBatchFlow[core.Shared](scale, factorBatch{factors: factors}, core.WithName("scale-batch"))
}

func runBatchFlow(ctx context.Context, deps Deps) error {
	shared := core.Shared{"values": []int{1, 2, 3, 4}}
	factors := map[string]int{"double": 2, "triple": 3, "tenfold": 10}
	if _, err := NewBatchFlow(factors).Run(ctx, shared); err != nil {
		return err
	}

	scaled := shared["scaled"].(map[string][]int)
	labels := make([]string, 0, len(scaled))
	for l := range scaled {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(deps.Out, "%-8s %v\n", l, scaled[l])
	}
	return nil
}
