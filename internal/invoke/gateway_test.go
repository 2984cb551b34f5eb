package invoke

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressdesk/internal/llm"
	"pressdesk/internal/trace"
)

// recorder captures emitted spans for assertions.
type recorder struct {
	spans []*recordedSpan
}

type recordedSpan struct {
	name   string
	kind   trace.Kind
	input  any
	model  string
	params map[string]any
	output any
	usage  *trace.Usage
	err    error
	ended  bool
}

func (r *recorder) Start(ctx context.Context, name string, kind trace.Kind, input any) (context.Context, trace.Span) {
	sp := &recordedSpan{name: name, kind: kind, input: input}
	r.spans = append(r.spans, sp)
	return ctx, sp
}

func (r *recorder) Flush(context.Context) error { return nil }

func (s *recordedSpan) SetModel(model string, params map[string]any) {
	s.model = model
	s.params = params
}

func (s *recordedSpan) End(output any, usage *trace.Usage, err error) {
	s.output = output
	s.usage = usage
	s.err = err
	s.ended = true
}

func TestInvoke_FreeTextPassthrough(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Text: "All facts verified."})
	g := New(fake, trace.NewNoop())

	out, err := g.Invoke(context.Background(), "fact_check", "You verify.", "the draft", false, Settings{Temperature: 0.1})
	require.NoError(t, err)
	assert.False(t, out.Structured())
	assert.Equal(t, "All facts verified.", out.Text)
}

func TestInvoke_DateMarkerPrependedToSystemPrompt(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Text: "ok"})
	g := New(fake, trace.NewNoop())

	_, err := g.Invoke(context.Background(), "extract_data", "You extract.", "input", false, Settings{})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	wantPrefix := "Current date: " + time.Now().Format("2006-01-02")
	assert.Contains(t, calls[0].System, wantPrefix)
	assert.Contains(t, calls[0].System, "You extract.")
	assert.Equal(t, "input", calls[0].Input)
	assert.Equal(t, llm.DefaultMaxTokens, calls[0].MaxTokens)
}

func TestInvoke_StructuredParsesFencedJSON(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Text: "```json\n{\"headline\":\"X merges\"}\n```"})
	g := New(fake, trace.NewNoop())

	out, err := g.Invoke(context.Background(), "extract_data", "sys", "in", true, Settings{})
	require.NoError(t, err)
	require.True(t, out.Structured())
	assert.Equal(t, "X merges", out.Data["headline"])

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSONMode)
}

func TestInvoke_StructuredRefusesPlainText(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Text: "Sorry, I can't help"})
	g := New(fake, trace.NewNoop())

	_, err := g.Invoke(context.Background(), "extract_data", "sys", "in", true, Settings{})
	require.ErrorIs(t, err, ErrStructuredOutput)
}

func TestInvoke_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("quota exceeded")
	fake := llm.NewFakeClient(llm.FakeReply{Err: boom})
	g := New(fake, trace.NewNoop())

	_, err := g.Invoke(context.Background(), "extract_data", "sys", "in", false, Settings{})
	require.ErrorIs(t, err, boom)
}

func TestInvoke_GenerationSpanRecordsUsageAndModel(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{
		Text:  `{"a":1}`,
		Usage: llm.Usage{PromptTokens: 10, CandidateTokens: 5, TotalTokens: 15},
	})
	rec := &recorder{}
	g := New(fake, rec)

	_, err := g.Invoke(context.Background(), "extract_data", "sys", "in", true, Settings{Model: "gemini-2.0-flash-exp", Temperature: 0.3})
	require.NoError(t, err)

	require.Len(t, rec.spans, 1)
	sp := rec.spans[0]
	assert.Equal(t, trace.KindGeneration, sp.kind)
	assert.Equal(t, "extract_data", sp.name)
	assert.Equal(t, "gemini-2.0-flash-exp", sp.model)
	assert.Equal(t, 0.3, sp.params["temperature"])
	assert.True(t, sp.ended)
	require.NotNil(t, sp.usage)
	assert.Equal(t, int32(10), sp.usage.Input)
	assert.Equal(t, int32(5), sp.usage.Output)
	assert.Equal(t, int32(15), sp.usage.Total)
	assert.NoError(t, sp.err)
}

func TestInvoke_SpanMarkedErrorOnProviderFailure(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeReply{Err: errors.New("network down")})
	rec := &recorder{}
	g := New(fake, rec)

	_, err := g.Invoke(context.Background(), "extract_data", "sys", "in", false, Settings{})
	require.Error(t, err)
	require.Len(t, rec.spans, 1)
	assert.True(t, rec.spans[0].ended)
	assert.Error(t, rec.spans[0].err)
}

func TestOutput_Serialize(t *testing.T) {
	assert.Equal(t, "plain text", Output{Text: "plain text"}.Serialize())
	assert.Equal(t, `{"angle":"business"}`, Output{Data: map[string]any{"angle": "business"}}.Serialize())
}
