package llm

import (
	"context"
	"sync"
)

// FakeClient returns scripted responses in call order, for offline runs and
// tests. Once the script is exhausted it repeats the last entry.
type FakeClient struct {
	mu     sync.Mutex
	script []FakeReply
	calls  []Request
}

// FakeReply is one scripted answer. Err takes precedence over Text.
type FakeReply struct {
	Text  string
	Usage Usage
	Err   error
}

func NewFakeClient(script ...FakeReply) *FakeClient {
	return &FakeClient{script: script}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Generate(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.script) == 0 {
		return &Response{Text: "{}"}, nil
	}
	idx := len(f.calls) - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	r := f.script[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return &Response{Text: r.Text, Usage: r.Usage}, nil
}

// Calls returns a copy of every request seen so far, in order.
func (f *FakeClient) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}
