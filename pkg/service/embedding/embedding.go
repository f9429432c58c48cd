// Package embedding provides the provider gateway used for all vector
// generation: a remote Gemini strategy with model discovery, a deterministic
// local strategy, and quota-aware fallback between them.
package embedding

import (
	"context"
	"strings"

	"github.com/kyohei-s/kiroku/pkg/adapter"
	"github.com/kyohei-s/kiroku/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Provider is one embedding strategy. Embed returns (nil, nil) for input that
// is empty after trimming; no provider call is made for such input.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelKey() string
}

// Gateway selects the provider once at construction and recovers from quota
// exhaustion by switching to the deterministic local strategy for the failing
// operation. A nil primary provider means embeddings are disabled: Embed
// returns (nil, nil) and callers degrade to unscored results.
type Gateway struct {
	provider  Provider
	fallback  Provider
	batchSize int
}

type GatewayOption func(*Gateway)

// WithBatchSize sets the sub-batch size for document embedding.
func WithBatchSize(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

const defaultBatchSize = 8

func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider:  provider,
		fallback:  NewLocalHash(),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether a primary provider is configured.
func (g *Gateway) Enabled() bool {
	return g.provider != nil
}

// ModelKey identifies the model whose vectors this gateway produces. Stored
// vectors are only ever compared within one model key.
func (g *Gateway) ModelKey() string {
	if g.provider == nil {
		return ""
	}
	return g.provider.ModelKey()
}

// Embed returns the vector for text together with the model key of the
// provider that actually produced it, or (nil, "", nil) when embeddings are
// disabled or the text is blank. Quota failures fall back to the local
// strategy, and the returned key reflects that: stored vectors must be keyed
// by their true producer or later remote vectors would be compared against
// local-hash ones. Other failures propagate.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, string, error) {
	if g.provider == nil || strings.TrimSpace(text) == "" {
		return nil, "", nil
	}

	vec, err := g.provider.Embed(ctx, text)
	if err != nil {
		if !adapter.IsQuota(err) {
			return nil, "", err
		}
		logging.From(ctx).Warn("embedding quota exhausted, falling back to local hash", "error", err)
		vec, err = g.fallback.Embed(ctx, text)
		if err != nil {
			return nil, "", err
		}
		return vec, g.fallback.ModelKey(), nil
	}
	return vec, g.provider.ModelKey(), nil
}

// EmbedDocuments embeds a document batch in fixed-size sub-batches. An empty
// vector in any result is a hard error; a quota failure switches the whole
// remaining operation to the local strategy.
func (g *Gateway) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	provider := g.provider
	if provider == nil {
		logging.From(ctx).Warn("embeddings are disabled; indexing with deterministic local hash vectors")
		provider = g.fallback
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += g.batchSize {
		end := min(i+g.batchSize, len(texts))
		batch := texts[i:end]

		vectors, err := provider.EmbedBatch(ctx, batch)
		if err != nil {
			if !adapter.IsQuota(err) {
				return nil, err
			}
			logging.From(ctx).Warn("embedding quota exhausted, falling back to local hash", "error", err)
			provider = g.fallback
			vectors, err = provider.EmbedBatch(ctx, batch)
			if err != nil {
				return nil, err
			}
		}

		if len(vectors) != len(batch) {
			return nil, goerr.New("provider returned wrong number of vectors",
				goerr.V("want", len(batch)), goerr.V("got", len(vectors)))
		}
		for _, v := range vectors {
			if len(v) == 0 {
				return nil, goerr.New("provider returned an empty vector; check the API key and embedding model")
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}
