package trace

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pressdesk/internal/langfuse"
)

type ctxKey struct{}

// scope is the nesting position carried through the context.
type scope struct {
	traceID  string
	parentID string
}

// LangfuseEmitter buffers hierarchical events and ships them as one
// ingestion batch on Flush. Every method swallows backend trouble: a
// tracing outage must never block the primary function.
type LangfuseEmitter struct {
	cli *langfuse.Client
	now func() time.Time

	mu  sync.Mutex
	buf []langfuse.IngestionEvent
}

// NewEmitter returns a Langfuse-backed emitter, or the no-op emitter when
// the client is not configured.
func NewEmitter(cli *langfuse.Client) Emitter {
	if !cli.Configured() {
		return NewNoop()
	}
	return &LangfuseEmitter{cli: cli, now: time.Now}
}

func (e *LangfuseEmitter) Start(ctx context.Context, name string, kind Kind, input any) (context.Context, Span) {
	ts := e.now().UTC()
	sc, _ := ctx.Value(ctxKey{}).(scope)

	if sc.traceID == "" {
		sc.traceID = uuid.NewString()
		e.push(langfuse.IngestionEvent{
			ID:        uuid.NewString(),
			Type:      "trace-create",
			Timestamp: ts.Format(time.RFC3339Nano),
			Body: map[string]any{
				"id":        sc.traceID,
				"name":      name,
				"timestamp": ts.Format(time.RFC3339Nano),
				"input":     input,
			},
		})
	}

	obsID := uuid.NewString()
	body := map[string]any{
		"id":        obsID,
		"traceId":   sc.traceID,
		"name":      name,
		"startTime": ts.Format(time.RFC3339Nano),
		"input":     input,
	}
	if sc.parentID != "" {
		body["parentObservationId"] = sc.parentID
	}
	evType := "span-create"
	if kind == KindGeneration {
		evType = "generation-create"
	}
	e.push(langfuse.IngestionEvent{
		ID:        uuid.NewString(),
		Type:      evType,
		Timestamp: ts.Format(time.RFC3339Nano),
		Body:      body,
	})

	child := context.WithValue(ctx, ctxKey{}, scope{traceID: sc.traceID, parentID: obsID})
	return child, &lfSpan{e: e, id: obsID, traceID: sc.traceID, kind: kind}
}

// Flush ships the buffered batch. Errors are reported to the caller but
// the buffer is dropped either way; stale events are worthless.
func (e *LangfuseEmitter) Flush(ctx context.Context) error {
	e.mu.Lock()
	batch := e.buf
	e.buf = nil
	e.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	if err := e.cli.Ingest(ctx, batch); err != nil {
		log.Printf("trace: flush failed, dropping %d events: %v", len(batch), err)
		return err
	}
	return nil
}

func (e *LangfuseEmitter) push(ev langfuse.IngestionEvent) {
	e.mu.Lock()
	e.buf = append(e.buf, ev)
	e.mu.Unlock()
}

type lfSpan struct {
	e       *LangfuseEmitter
	id      string
	traceID string
	kind    Kind

	mu     sync.Mutex
	model  string
	params map[string]any
	done   bool
}

func (s *lfSpan) SetModel(model string, params map[string]any) {
	s.mu.Lock()
	s.model = model
	s.params = params
	s.mu.Unlock()
}

func (s *lfSpan) End(output any, usage *Usage, err error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	model, params := s.model, s.params
	s.mu.Unlock()

	ts := s.e.now().UTC()
	body := map[string]any{
		"id":      s.id,
		"traceId": s.traceID,
		"endTime": ts.Format(time.RFC3339Nano),
	}
	if output != nil {
		body["output"] = output
	}
	if err != nil {
		body["level"] = "ERROR"
		body["statusMessage"] = err.Error()
	}
	evType := "span-update"
	if s.kind == KindGeneration {
		evType = "generation-update"
		if model != "" {
			body["model"] = model
		}
		if params != nil {
			body["modelParameters"] = params
		}
		if usage != nil {
			body["usage"] = map[string]any{
				"input":  usage.Input,
				"output": usage.Output,
				"total":  usage.Total,
			}
		}
	}
	s.e.push(langfuse.IngestionEvent{
		ID:        uuid.NewString(),
		Type:      evType,
		Timestamp: ts.Format(time.RFC3339Nano),
		Body:      body,
	})
}
