package llm

import (
	"context"
	"strings"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Message struct {
	Role string // user|model
	Text string
}

// Request is one generation: persona instructions, prior turns and the new utterance.
type Request struct {
	System      string
	History     []Message
	Prompt      string
	Temperature float32
	MaxTokens   int32
}

type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental).
	// chunks is closed when generation ends; errs carries at most one error.
	StreamAnswer(ctx context.Context, req Request) (chunks <-chan string, errs <-chan error)
	Close() error
}

// Collect drains a stream into one string.
func Collect(ctx context.Context, p Provider, req Request) (string, error) {
	chunks, errs := p.StreamAnswer(ctx, req)
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	if err := <-errs; err != nil {
		return b.String(), err
	}
	return b.String(), nil
}
