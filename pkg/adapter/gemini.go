package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is the remote model capability consumed by the embedding gateway and
// the answer synthesizer.
type Gemini interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
	ListEmbeddingModels(ctx context.Context) ([]string, error)
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	client    *genai.Client
	chatModel string
}

type GeminiOption func(*GeminiClient)

func WithChatModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.chatModel = model
	}
}

// NewGemini creates a Gemini API client authenticated by API key.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, goerr.New("GEMINI_API_KEY is required", goerr.T(TagAuth))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:    client,
		chatModel: "gemini-1.5-flash",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// normalizeModelName strips the "models/" resource prefix the catalog returns.
func normalizeModelName(model string) string {
	return strings.TrimPrefix(strings.TrimSpace(model), "models/")
}

func (g *GeminiClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *GeminiClient) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := g.client.Models.EmbedContent(ctx, normalizeModelName(model), contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, wrapGemini(err, "failed to embed content", goerr.V("model", model))
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("want", len(texts)), goerr.V("got", len(resp.Embeddings)))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, goerr.New("provider returned an empty vector", goerr.V("model", model))
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// ListEmbeddingModels returns the catalog models that advertise the
// embedContent capability, used to discover a working model when the
// configured one is unavailable.
func (g *GeminiClient) ListEmbeddingModels(ctx context.Context) ([]string, error) {
	var names []string
	seen := map[string]bool{}

	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, wrapGemini(err, "failed to list models")
		}
		if m == nil {
			continue
		}
		supported := false
		for _, action := range m.SupportedActions {
			if action == "embedContent" {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		name := normalizeModelName(m.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	return names, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, config)
	if err != nil {
		return nil, wrapGemini(err, "failed to generate content", goerr.V("model", g.chatModel))
	}
	return resp, nil
}
