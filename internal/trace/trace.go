// Package trace makes pipeline stages and model calls observable without
// coupling the callers to whether a tracing backend is configured. The
// no-op emitter hands out inert spans, so orchestrator and gateway code
// paths are identical either way.
package trace

import "context"

// Kind distinguishes logical steps from model invocations.
type Kind string

const (
	KindSpan       Kind = "span"
	KindGeneration Kind = "generation"
)

// Usage carries token accounting for generation spans.
type Usage struct {
	Input  int32 `json:"input"`
	Output int32 `json:"output"`
	Total  int32 `json:"total"`
}

// Span is an updatable handle for one started unit. End must be called
// exactly once; inert spans ignore every call.
type Span interface {
	// SetModel records the model id and call parameters on a generation.
	SetModel(model string, params map[string]any)
	// End closes the span with its output, optional token usage, and
	// error status.
	End(output any, usage *Usage, err error)
}

// Emitter starts spans and flushes pending events. Spans nest by the
// returned context: a run is the root, stages are children, model calls
// are generation grandchildren.
type Emitter interface {
	Start(ctx context.Context, name string, kind Kind, input any) (context.Context, Span)
	Flush(ctx context.Context) error
}

// Noop is the emitter used when no backend is configured.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Start(ctx context.Context, name string, kind Kind, input any) (context.Context, Span) {
	return ctx, nopSpan{}
}

func (Noop) Flush(context.Context) error { return nil }

type nopSpan struct{}

func (nopSpan) SetModel(string, map[string]any) {}
func (nopSpan) End(any, *Usage, error)          {}
