package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the provider answers without any
// usable candidate text.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// Request carries one text-completion call. System holds the stage prompt,
// Input the rendered user content. JSONMode asks the provider to constrain
// its output to parseable JSON.
type Request struct {
	System      string
	Input       string
	Model       string
	Temperature float64
	MaxTokens   int32
	JSONMode    bool
}

// Usage mirrors the provider's token accounting for one call.
type Usage struct {
	PromptTokens    int32
	CandidateTokens int32
	TotalTokens     int32
}

// Response is the normalized provider answer: raw text plus token usage
// when the provider reports it.
type Response struct {
	Text  string
	Usage Usage
}

type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
	Close() error
}
