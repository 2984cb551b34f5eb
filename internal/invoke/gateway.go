// Package invoke executes single model calls and normalizes their results
// into the shape the next pipeline stage expects.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pressdesk/internal/llm"
	"pressdesk/internal/trace"
	"pressdesk/internal/util/jsonutil"
)

// ErrStructuredOutput reports a call that requested structured output but
// got text that does not parse as a JSON object even after fence stripping.
// This aborts the stage; the contract with downstream stages is binding.
var ErrStructuredOutput = errors.New("invoke: model did not return parseable JSON")

// Settings are the caller-supplied per-run model parameters, passed through
// unchanged to every stage's invocation.
type Settings struct {
	Model       string
	Temperature float64
}

// Output is one stage's result: a parsed mapping in structured mode, raw
// text otherwise. Exactly one of the two is populated.
type Output struct {
	Text string
	Data map[string]any
}

// Structured reports whether the output carries a parsed mapping.
func (o Output) Structured() bool { return o.Data != nil }

// Serialize renders the output the way it is threaded into the next
// stage's input: compact JSON for mappings, the raw text otherwise.
func (o Output) Serialize() string {
	if o.Data != nil {
		return jsonutil.Serialize(o.Data)
	}
	return o.Text
}

// Gateway wraps the provider client with date stamping, output
// normalization and generation-span tracing.
type Gateway struct {
	llm    llm.Client
	tracer trace.Emitter
	now    func() time.Time
}

func New(cli llm.Client, tracer trace.Emitter) *Gateway {
	return &Gateway{llm: cli, tracer: tracer, now: time.Now}
}

// Invoke runs one model call. The current date is prepended to the system
// prompt so the model has temporal grounding regardless of its training
// cutoff. In structured mode the response must parse as a JSON object.
func (g *Gateway) Invoke(ctx context.Context, name, system, input string, structured bool, s Settings) (Output, error) {
	system = fmt.Sprintf("Current date: %s\n\n%s", g.now().Format("2006-01-02"), system)

	req := llm.Request{
		System:      system,
		Input:       input,
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   llm.DefaultMaxTokens,
		JSONMode:    structured,
	}

	ctx, span := g.tracer.Start(ctx, name, trace.KindGeneration, map[string]any{
		"system": system,
		"input":  input,
	})
	model := s.Model
	if model == "" {
		model = llm.DefaultModel
	}
	span.SetModel(model, map[string]any{
		"temperature": s.Temperature,
		"max_tokens":  llm.DefaultMaxTokens,
		"json_mode":   structured,
	})

	resp, err := g.llm.Generate(ctx, req)
	if err != nil {
		span.End(nil, nil, err)
		return Output{}, fmt.Errorf("invoke: provider call failed: %w", err)
	}
	usage := &trace.Usage{
		Input:  resp.Usage.PromptTokens,
		Output: resp.Usage.CandidateTokens,
		Total:  resp.Usage.TotalTokens,
	}

	if !structured {
		span.End(resp.Text, usage, nil)
		return Output{Text: resp.Text}, nil
	}

	data, perr := jsonutil.DecodeObject(resp.Text)
	if perr != nil {
		wrapped := fmt.Errorf("%w: %v", ErrStructuredOutput, perr)
		span.End(resp.Text, usage, wrapped)
		return Output{}, wrapped
	}
	span.End(resp.Text, usage, nil)
	return Output{Data: data}, nil
}
