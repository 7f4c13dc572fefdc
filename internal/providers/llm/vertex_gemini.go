package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.7
	defaultMaxTokens   = 250
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = defaultModel
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// model builds a fresh handle per request so system instructions never leak between sessions.
func (v *VertexGemini) model(req Request) *vertexgenai.GenerativeModel {
	m := v.client.GenerativeModel(v.modelName)
	temp := req.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	m.SetTemperature(temp)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(maxTokens)
	if req.System != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(req.System)}}
	}
	return m
}

func toContents(history []Message) []*vertexgenai.Content {
	out := make([]*vertexgenai.Content, 0, len(history))
	for _, h := range history {
		if h.Text == "" {
			continue
		}
		role := RoleModel
		if h.Role == RoleUser {
			role = RoleUser
		}
		out = append(out, &vertexgenai.Content{Role: role, Parts: []vertexgenai.Part{vertexgenai.Text(h.Text)}})
	}
	return out
}

func (v *VertexGemini) StreamAnswer(ctx context.Context, req Request) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		cs := v.model(req).StartChat()
		cs.History = toContents(req.History)

		it := cs.SendMessageStream(ctx, vertexgenai.Text(req.Prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
						select {
						case out <- string(t):
						case <-ctx.Done():
							errs <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return out, errs
}
