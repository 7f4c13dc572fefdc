package llm

import (
	"context"
	"errors"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DefaultEmbeddingModel = "text-embedding-004"

	// EmbeddingDimensions matches the vector(768) archive column.
	EmbeddingDimensions = 768
)

// Embedder turns one line of text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VertexEmbedder calls a Vertex AI publisher embedding model through the prediction API.
type VertexEmbedder struct {
	client   *aiplatform.PredictionClient
	endpoint string
}

func NewVertexEmbedder(ctx context.Context, projectID, location, model string) (*VertexEmbedder, error) {
	if projectID == "" || location == "" {
		return nil, errors.New("vertex embedder needs a project and a location")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	c, err := aiplatform.NewPredictionClient(ctx, option.WithEndpoint(location+"-aiplatform.googleapis.com:443"))
	if err != nil {
		return nil, err
	}
	return &VertexEmbedder{
		client:   c,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", projectID, location, model),
	}, nil
}

func (v *VertexEmbedder) Close() error { return v.client.Close() }

func (v *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req, err := embeddingRequest(v.endpoint, text)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseEmbedding(resp)
}

// transcript lines are archived for later retrieval, hence the document task type
func embeddingRequest(endpoint, text string) (*aiplatformpb.PredictRequest, error) {
	instance, err := structpb.NewValue(map[string]any{
		"content":   text,
		"task_type": "RETRIEVAL_DOCUMENT",
	})
	if err != nil {
		return nil, err
	}
	params, err := structpb.NewValue(map[string]any{"outputDimensionality": EmbeddingDimensions})
	if err != nil {
		return nil, err
	}
	return &aiplatformpb.PredictRequest{
		Endpoint:   endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	}, nil
}

// parseEmbedding reads predictions[0].embeddings.values.
func parseEmbedding(resp *aiplatformpb.PredictResponse) ([]float32, error) {
	preds := resp.GetPredictions()
	if len(preds) == 0 {
		return nil, errors.New("embedding response has no predictions")
	}
	emb := preds[0].GetStructValue().GetFields()["embeddings"].GetStructValue()
	values := emb.GetFields()["values"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, errors.New("embedding response has no values")
	}

	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v.GetNumberValue())
	}
	return out, nil
}
