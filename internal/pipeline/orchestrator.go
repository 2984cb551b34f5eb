// Package pipeline sequences the editorial stages for one submission:
// parse the incoming material, extract structured data, develop a concept,
// draft the article, and fact-check the draft. Each stage's output is the
// next stage's input.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pressdesk/internal/attachparse"
	"pressdesk/internal/invoke"
	"pressdesk/internal/prompt"
	"pressdesk/internal/trace"
)

const defaultStageTimeout = 2 * time.Minute

// StageConfigs carries the prompt selection for each stage of the standard
// four-stage pipeline. StructuredDraft switches the drafting stage to JSON
// output for template-driven article formats.
type StageConfigs struct {
	Extract prompt.Ref
	Concept prompt.Ref
	Write   prompt.Ref
	Check   prompt.Ref

	StructuredDraft bool
}

// Request is one submission: free text plus optional attachments, the
// stage prompt selection, and the model settings applied to every call.
type Request struct {
	Metadata    string
	Body        string
	Attachments []attachparse.Attachment
	Stages      StageConfigs
	Settings    invoke.Settings
}

// Stage is one executable pipeline step. The orchestrator runs whatever
// ordered slice it is given; the four-stage editorial flow is just the
// default construction.
type Stage struct {
	Key        string // output name in the Result
	State      State
	TraceName  string
	Message    string
	Prompt     prompt.Ref
	Structured bool
	Input      func(r *Result) string
}

// Orchestrator wires resolver, gateway and tracer into a runnable
// pipeline. All fields are required except StageTimeout.
type Orchestrator struct {
	Resolver     *prompt.Resolver
	Gateway      *invoke.Gateway
	Tracer       trace.Emitter
	Parser       *attachparse.Parser
	StageTimeout time.Duration
}

// Run executes the full sequence for one submission. The returned Result
// is always non-nil; on failure it holds everything completed so far.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	return o.RunInto(ctx, req, NewResult())
}

// RunInto is Run with a caller-supplied Result, so callers can hold a live
// reference (and attach log subscribers) before the first stage starts.
func (o *Orchestrator) RunInto(ctx context.Context, req Request, res *Result) (_ *Result, err error) {
	ctx, finish := o.startRun(ctx, "editorial_workflow", map[string]any{
		"metadata":    req.Metadata,
		"body":        req.Body,
		"attachments": len(req.Attachments),
	}, res)
	defer func() { finish(err) }()

	res.Log.Infof("Parsing %d attachments...", len(req.Attachments))
	raw := o.buildRawContext(req)
	res.Set(KeyRawInput, invoke.Output{Text: raw})

	if err = o.runSequence(ctx, o.editorialStages(req.Stages), req.Settings, res); err != nil {
		return res, err
	}
	res.Log.Infof("Workflow completed.")
	return res, nil
}

// RunStages executes an arbitrary stage sequence under its own root span,
// named after the pipeline variant. Used by variants with fewer or
// reordered stages.
func (o *Orchestrator) RunStages(ctx context.Context, name string, stages []Stage, settings invoke.Settings, res *Result) (err error) {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.TraceName
	}
	ctx, finish := o.startRun(ctx, name, names, res)
	defer func() { finish(err) }()
	return o.runSequence(ctx, stages, settings, res)
}

// startRun opens the run's root span. The returned finish closes it and
// flushes the tracer exactly once, regardless of outcome, and still works
// when the run context is already canceled.
func (o *Orchestrator) startRun(ctx context.Context, name string, input any, res *Result) (context.Context, func(error)) {
	ctx, root := o.Tracer.Start(ctx, name, trace.KindSpan, input)
	return ctx, func(err error) {
		root.End(res.Names(), nil, err)
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = o.Tracer.Flush(flushCtx)
	}
}

func (o *Orchestrator) runSequence(ctx context.Context, stages []Stage, settings invoke.Settings, res *Result) error {
	for _, st := range stages {
		if err := o.runStage(ctx, st, settings, res); err != nil {
			res.setState(StateFailed)
			return err
		}
	}
	res.setState(StateDone)
	return nil
}

func (o *Orchestrator) editorialStages(cfg StageConfigs) []Stage {
	return []Stage{
		{
			Key:        KeyExtraction,
			State:      StateExtracting,
			TraceName:  "extract_data",
			Message:    "Phase 1: data extraction...",
			Prompt:     cfg.Extract,
			Structured: true,
			Input:      func(r *Result) string { return r.RawInput() },
		},
		{
			Key:        KeyConcept,
			State:      StateConcepting,
			TraceName:  "develop_concept",
			Message:    "Phase 2: editorial concept...",
			Prompt:     cfg.Concept,
			Structured: true,
			Input: func(r *Result) string {
				out, _ := r.Get(KeyExtraction)
				return out.Serialize()
			},
		},
		{
			Key:        KeyArticle,
			State:      StateDrafting,
			TraceName:  "generate_draft",
			Message:    "Phase 3: article draft...",
			Prompt:     cfg.Write,
			Structured: cfg.StructuredDraft,
			Input: func(r *Result) string {
				ext, _ := r.Get(KeyExtraction)
				con, _ := r.Get(KeyConcept)
				return fmt.Sprintf("EXTRACTED DATA (JSON):\n%s\n\nEDITORIAL CONCEPT (JSON):\n%s",
					ext.Serialize(), con.Serialize())
			},
		},
		{
			Key:        KeyCheckReport,
			State:      StateChecking,
			TraceName:  "fact_check",
			Message:    "Phase 4: fact check...",
			Prompt:     cfg.Check,
			Structured: false,
			Input: func(r *Result) string {
				ext, _ := r.Get(KeyExtraction)
				art, _ := r.Get(KeyArticle)
				return fmt.Sprintf("SOURCE MATERIAL:\n%s\n\nEXTRACTED DATA (JSON):\n%s\n\nGENERATED DRAFT:\n%s",
					r.RawInput(), ext.Serialize(), art.Serialize())
			},
		},
	}
}

func (o *Orchestrator) runStage(ctx context.Context, st Stage, settings invoke.Settings, res *Result) error {
	res.Log.Infof("%s", st.Message)
	res.setState(st.State)

	input := st.Input(res)
	sctx, span := o.Tracer.Start(ctx, st.TraceName, trace.KindSpan, input)

	body, err := o.Resolver.Resolve(sctx, st.Prompt)
	if err != nil {
		err = fmt.Errorf("stage %s: %w", st.Key, err)
		res.Log.Errorf("%v", err)
		span.End(nil, nil, err)
		return err
	}

	timeout := o.StageTimeout
	if timeout <= 0 {
		timeout = defaultStageTimeout
	}
	callCtx, cancel := context.WithTimeout(sctx, timeout)
	defer cancel()

	out, err := o.Gateway.Invoke(callCtx, st.TraceName, body, input, st.Structured, settings)
	if err != nil {
		err = fmt.Errorf("stage %s: %w", st.Key, err)
		res.Log.Errorf("%v", err)
		span.End(nil, nil, err)
		return err
	}

	res.Set(st.Key, out)
	span.End(out.Serialize(), nil, nil)
	return nil
}

func (o *Orchestrator) buildRawContext(req Request) string {
	var sb strings.Builder
	sb.WriteString("METADATA:\n")
	sb.WriteString(req.Metadata)
	sb.WriteString("\n\nMESSAGE:\n")
	sb.WriteString(req.Body)
	if attachments := o.Parser.Combine(req.Attachments); attachments != "" {
		sb.WriteString("\n\nATTACHMENTS:\n")
		sb.WriteString(attachments)
	}
	return sb.String()
}
