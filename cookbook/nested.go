package cookbook

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/alt-coder/brainyflow-go/core"
)

// Gradebook maps class to student to grades.
type Gradebook map[string]map[string][]float64

// Averages maps class to student to average grade.
type Averages map[string]map[string]float64

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

type loadGrades struct {
	core.BaseNode[core.Shared, []float64, []float64]
}

func (loadGrades) Prep(ctx context.Context, shared core.Shared) ([]float64, error) {
	class, _ := core.Param[string](ctx, "class")
	student, _ := core.Param[string](ctx, "student")
	book, _ := core.Get[Gradebook](shared, "gradebook")
	grades, ok := book[class][student]
	if !ok {
		return nil, fmt.Errorf("no grades for %s/%s", class, student)
	}
	return grades, nil
}

func (loadGrades) Post(_ context.Context, shared core.Shared, grades, _ []float64) (core.Action, error) {
	shared["grades"] = grades
	return "calculate", nil
}

type averageGrades struct {
	core.BaseNode[core.Shared, []float64, float64]
}

func (averageGrades) Prep(_ context.Context, shared core.Shared) ([]float64, error) {
	return core.GetOr[[]float64](shared, "grades", nil), nil
}

func (averageGrades) Exec(_ context.Context, grades []float64) (float64, error) {
	if len(grades) == 0 {
		return 0, fmt.Errorf("no grades to average")
	}
	return mean(grades), nil
}

func (averageGrades) Post(ctx context.Context, shared core.Shared, _ []float64, avg float64) (core.Action, error) {
	class, _ := core.Param[string](ctx, "class")
	student, _ := core.Param[string](ctx, "student")
	results, _ := core.Get[Averages](shared, "results")
	if results == nil {
		results = Averages{}
		shared["results"] = results
	}
	if results[class] == nil {
		results[class] = map[string]float64{}
	}
	results[class][student] = avg
	return core.ActionDefault, nil
}

// classBatch yields one param set per student of the class bound in params.
type classBatch struct {
	out io.Writer
}

func (b classBatch) Prep(ctx context.Context, shared core.Shared) ([]core.Params, error) {
	class, ok := core.Param[string](ctx, "class")
	if !ok {
		return nil, fmt.Errorf("missing class param")
	}
	book, _ := core.Get[Gradebook](shared, "gradebook")
	var sets []core.Params
	for _, student := range sortedKeys(book[class]) {
		sets = append(sets, core.Params{"student": student})
	}
	return sets, nil
}

func (b classBatch) Post(ctx context.Context, shared core.Shared, _ []core.Params) (core.Action, error) {
	class, _ := core.Param[string](ctx, "class")
	results, _ := core.Get[Averages](shared, "results")
	var avgs []float64
	for _, student := range sortedKeys(results[class]) {
		avg := results[class][student]
		fmt.Fprintf(b.out, "  %s/%s: %.1f\n", class, student, avg)
		avgs = append(avgs, avg)
	}
	fmt.Fprintf(b.out, "class %s average: %.2f\n", class, mean(avgs))
	return core.ActionDefault, nil
}

type schoolBatch struct {
	out io.Writer
}

func (b schoolBatch) Prep(_ context.Context, shared core.Shared) ([]core.Params, error) {
	book, _ := core.Get[Gradebook](shared, "gradebook")
	var sets []core.Params
	for _, class := range sortedKeys(book) {
		sets = append(sets, core.Params{"class": class})
	}
	return sets, nil
}

func (b schoolBatch) Post(_ context.Context, shared core.Shared, _ []core.Params) (core.Action, error) {
	results, _ := core.Get[Averages](shared, "results")
	var all []float64
	for _, class := range sortedKeys(results) {
		for _, student := range sortedKeys(results[class]) {
			all = append(all, results[class][student])
		}
	}
	avg := mean(all)
	shared["school_average"] = avg
	fmt.Fprintf(b.out, "school average: %.2f\n", avg)
	return core.ActionDefault, nil
}

// NewNestedFlow averages shared["gradebook"] per student, class and school.
// A school batch flow runs a class batch flow per class, which runs the
// student flow per student.
func NewNestedFlow(out io.Writer) *core.BatchFlow[core.Shared] {
	load := core.NewNode[core.Shared, []float64, []float64](loadGrades{}, core.WithName("load-grades"))
	calc := core.NewNode[core.Shared, []float64, float64](averageGrades{}, core.WithName("average"))
	load.On("calculate").To(calc)

	student := core.NewFlow[core.Shared](load, core.WithName("student"))
	class := core.NewBatchFlow[core.Shared](student, classBatch{out: out}, core.WithName("class"))
	return core.NewBatchFlow[core.Shared](class, schoolBatch{out: out}, core.WithName("school"))
}

// SampleGradebook is the data the catalog entry runs on.
func SampleGradebook() Gradebook {
	return Gradebook{
		"class_a": {
			"ann": {9.0, 8.5, 9.5},
			"bob": {7.0, 6.5, 8.0},
		},
		"class_b": {
			"cid": {5.5, 6.0, 7.5},
			"dee": {9.5, 9.0, 10.0},
		},
	}
}

func runNested(ctx context.Context, deps Deps) error {
	shared := core.Shared{"gradebook": SampleGradebook()}
	_, err := NewNestedFlow(deps.Out).Run(ctx, shared)
	return err
}
