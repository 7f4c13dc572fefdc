package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"

	"github.com/yoockh/oscesim/internal/intent"
)

// VertexClassifier asks Gemini for one intent code in JSON mode.
type VertexClassifier struct {
	client    *vertexgenai.Client
	modelName string
}

// NewVertexClassifier shares the generation client; closing is left to its owner.
func NewVertexClassifier(v *VertexGemini) *VertexClassifier {
	return &VertexClassifier{client: v.client, modelName: v.modelName}
}

func classifierPrompt(utterance string, allowed []intent.Code) string {
	codes := make([]string, len(allowed))
	for i, c := range allowed {
		codes[i] = string(c)
	}
	return fmt.Sprintf(`You classify what a medical student says to a simulated patient.
Pick exactly one intent from this list: %s.
If none fits, use UNKNOWN.
Respond with JSON only: {"intent": "<INTENT_CODE>"}

Student: %q`, strings.Join(codes, ", "), utterance)
}

type classification struct {
	Intent string `json:"intent"`
}

// parseClassification accepts the JSON object, optionally wrapped in a code fence.
func parseClassification(raw string) (intent.Code, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	var c classification
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &c); err != nil {
		return "", err
	}
	if c.Intent == "" {
		return "", errors.New("empty intent")
	}
	return intent.Code(c.Intent), nil
}

func (v *VertexClassifier) Classify(ctx context.Context, utterance string, allowed []intent.Code) (intent.Code, error) {
	m := v.client.GenerativeModel(v.modelName)
	m.SetTemperature(0.2)
	m.SetMaxOutputTokens(64)
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, vertexgenai.Text(classifierPrompt(utterance, allowed)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return parseClassification(b.String())
}
