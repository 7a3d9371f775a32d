package core

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// settings is shared by every workflow type. Options that do not apply to a
// given type are ignored by it.
type settings struct {
	name        string
	maxRetries  int
	wait        time.Duration
	concurrency int
	params      Params
	logger      *zap.Logger
	tracer      trace.Tracer
}

func newSettings(opts []Option) settings {
	s := settings{maxRetries: 1}
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxRetries < 1 {
		s.maxRetries = 1
	}
	if s.wait < 0 {
		s.wait = 0
	}
	if s.concurrency < 0 {
		s.concurrency = 0
	}
	return s
}

// Option configures a node or flow.
type Option func(*settings)

// WithMaxRetries sets how many times Exec is attempted. Values below 1 mean 1.
func WithMaxRetries(retries int) Option {
	return func(s *settings) {
		s.maxRetries = retries
	}
}

// WithWait sets the pause between failed Exec attempts.
func WithWait(wait time.Duration) Option {
	return func(s *settings) {
		s.wait = wait
	}
}

// WithConcurrency caps the number of items or sub-flows a parallel batch runs at
// once. Zero, the default, means unbounded.
func WithConcurrency(n int) Option {
	return func(s *settings) {
		s.concurrency = n
	}
}

// WithName labels the workflow in logs and trace spans.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithParams sets the workflow's own params.
func WithParams(p Params) Option {
	return func(s *settings) {
		s.params = p.Clone()
	}
}

// WithLogger sets the logger used for graph diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithTracer sets the tracer used for step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = tracer
	}
}
