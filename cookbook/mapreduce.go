package cookbook

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/alt-coder/brainyflow-go/core"
	"github.com/alt-coder/brainyflow-go/llm"
	"github.com/alt-coder/brainyflow-go/structured"
	"go.uber.org/zap"
)

const screeningCriteria = `Decide whether the candidate qualifies for an advanced technical role.
Criteria for qualification:
- At least a bachelor's degree in a relevant field
- At least 3 years of relevant work experience
- Strong technical skills relevant to the position`

// Evaluation is the structured verdict for one resume.
type Evaluation struct {
	CandidateName string   `yaml:"candidate_name" description:"Name of the candidate" validate:"required"`
	Qualifies     bool     `yaml:"qualifies" description:"Whether the candidate meets every criterion"`
	Reasons       []string `yaml:"reasons" description:"Reasons for the decision" validate:"min=1"`
}

// ScreeningSummary is the reduce output.
type ScreeningSummary struct {
	Total          int
	Qualified      int
	Percentage     float64
	QualifiedNames []string
}

type resume struct {
	File string
	Text string
}

type evaluateResumes struct {
	core.BaseBatchNode[core.Shared, resume, Evaluation]
	provider llm.Provider
	logger   *zap.Logger
}

func (e *evaluateResumes) Prep(_ context.Context, shared core.Shared) ([]resume, error) {
	files := core.GetOr[map[string]string](shared, "resumes", nil)
	items := make([]resume, 0, len(files))
	for _, name := range sortedKeys(files) {
		items = append(items, resume{File: name, Text: files[name]})
	}
	return items, nil
}

func (e *evaluateResumes) Exec(ctx context.Context, r resume) (Evaluation, error) {
	return structured.Extract[Evaluation](ctx, e.provider, r.Text, screeningCriteria)
}

// ExecFallback records an unparseable verdict as not qualified.
func (e *evaluateResumes) ExecFallback(_ context.Context, r resume, err error) (Evaluation, error) {
	e.logger.Warn("resume evaluation failed", zap.String("file", r.File), zap.Error(err))
	return Evaluation{CandidateName: r.File, Reasons: []string{"evaluation failed: " + err.Error()}}, nil
}

func (e *evaluateResumes) Post(_ context.Context, shared core.Shared, items []resume, evals []Evaluation) (core.Action, error) {
	byFile := make(map[string]Evaluation, len(items))
	for i, r := range items {
		byFile[r.File] = evals[i]
	}
	shared["evaluations"] = byFile
	return core.ActionDefault, nil
}

type reduceEvaluations struct {
	core.BaseNode[core.Shared, map[string]Evaluation, ScreeningSummary]
}

func (reduceEvaluations) Prep(_ context.Context, shared core.Shared) (map[string]Evaluation, error) {
	return core.GetOr[map[string]Evaluation](shared, "evaluations", nil), nil
}

func (reduceEvaluations) Exec(_ context.Context, evals map[string]Evaluation) (ScreeningSummary, error) {
	s := ScreeningSummary{Total: len(evals)}
	for _, file := range sortedKeys(evals) {
		if ev := evals[file]; ev.Qualifies {
			s.Qualified++
			s.QualifiedNames = append(s.QualifiedNames, ev.CandidateName)
		}
	}
	if s.Total > 0 {
		s.Percentage = math.Round(float64(s.Qualified)/float64(s.Total)*1000) / 10
	}
	sort.Strings(s.QualifiedNames)
	return s, nil
}

func (reduceEvaluations) Post(_ context.Context, shared core.Shared, _ map[string]Evaluation, s ScreeningSummary) (core.Action, error) {
	shared["summary"] = s
	return core.ActionDefault, nil
}

// NewMapReduceFlow screens shared["resumes"] (file name to text) in parallel
// and reduces the verdicts into shared["summary"].
func NewMapReduceFlow(provider llm.Provider, logger *zap.Logger, concurrency int) *core.Flow[core.Shared] {
	if logger == nil {
		logger = zap.NewNop()
	}
	evaluate := core.NewParallelBatchNode[core.Shared, resume, Evaluation](
		&evaluateResumes{provider: provider, logger: logger},
		core.WithName("evaluate"),
		core.WithMaxRetries(2),
		core.WithConcurrency(concurrency),
	)
	reduce := core.NewNode[core.Shared, map[string]Evaluation, ScreeningSummary](reduceEvaluations{}, core.WithName("reduce"))
	evaluate.Next(reduce)
	return core.NewFlow[core.Shared](evaluate, core.WithName("resume-screening"))
}

// SampleResumes is the data the catalog entry runs on.
func SampleResumes() map[string]string {
	return map[string]string{
		"resume1.txt": "Emily Johnson. BSc Computer Science, 2016. Five years as a backend engineer building distributed systems in Go and Python.",
		"resume2.txt": "John Smith. High school diploma. Two years of retail experience, eager to move into technology.",
		"resume3.txt": "Priya Patel. MSc Software Engineering. Four years as a data engineer working with Spark, Kafka and Kubernetes.",
		"resume4.txt": "Michael Brown. BA History. One year as a junior web developer after a coding bootcamp.",
	}
}

func runMapReduce(ctx context.Context, deps Deps) error {
	shared := core.Shared{"resumes": SampleResumes()}
	if _, err := NewMapReduceFlow(deps.Provider, deps.Logger, deps.Concurrency).Run(ctx, shared); err != nil {
		return err
	}
	s := shared["summary"].(ScreeningSummary)
	fmt.Fprintf(deps.Out, "Total candidates evaluated: %d\nQualified candidates: %d (%.1f%%)\n", s.Total, s.Qualified, s.Percentage)
	for _, name := range s.QualifiedNames {
		fmt.Fprintf(deps.Out, "- %s\n", name)
	}
	return nil
}
