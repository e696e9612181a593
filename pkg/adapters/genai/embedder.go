package genai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder generates query embeddings for retrieval, satisfying the policy
// backend's Embedder interface.
type Embedder struct {
	embed func(ctx context.Context, text string) (*genai.EmbedContentResponse, error)
	model string
}

// NewEmbedder creates a Gemini-backed embedder.
func NewEmbedder(client *genai.Client, model string) *Embedder {
	if model == "" {
		model = "gemini-embedding-001"
	}
	e := &Embedder{model: model}
	e.embed = func(ctx context.Context, text string) (*genai.EmbedContentResponse, error) {
		contents := []*genai.Content{
			genai.NewContentFromText(text, genai.RoleUser),
		}
		return client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			TaskType: "RETRIEVAL_QUERY",
		})
	}
	return e
}

// Embed generates an embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
