package embedding

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kyohei-s/kiroku/pkg/adapter"
	"github.com/kyohei-s/kiroku/pkg/utils/logging"
	"github.com/kyohei-s/kiroku/pkg/utils/remote"
	"github.com/m-mizutani/goerr/v2"
)

// GeminiProvider embeds text through the Gemini API. All calls go through one
// FIFO queue with bounded retries. When the configured model turns out not to
// exist, the provider discovers embedding-capable models from the catalog and
// tries them in order; the first model that works is cached on the instance
// and reused without another discovery round-trip.
type GeminiProvider struct {
	client     adapter.Gemini
	configured string
	queue      *remote.Queue
	policy     remote.Policy

	mu      sync.Mutex
	working string
}

type GeminiProviderOption func(*GeminiProvider)

// WithSpacing inserts a delay after each remote call.
func WithSpacing(d time.Duration) GeminiProviderOption {
	return func(p *GeminiProvider) {
		p.policy.Spacing = d
	}
}

func NewGemini(client adapter.Gemini, model string, opts ...GeminiProviderOption) *GeminiProvider {
	p := &GeminiProvider{
		client:     client,
		configured: model,
		queue:      remote.NewQueue(),
		policy: remote.Policy{
			Retryable: adapter.IsTransient,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelKey scopes stored vectors to the configured model identity.
func (p *GeminiProvider) ModelKey() string {
	return "gemini:" + p.configured
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tried := map[string]bool{}
	var lastErr error

	// Cached working model first, then the configured one.
	for _, candidate := range p.initialCandidates() {
		if tried[candidate] {
			continue
		}
		tried[candidate] = true

		vectors, err := p.callEmbed(ctx, candidate, texts)
		if err == nil {
			p.setWorking(candidate)
			return vectors, nil
		}
		if !adapter.IsNotFound(err) {
			return nil, err
		}
		lastErr = err
	}

	// The configured model does not exist. Ask the catalog for models that
	// advertise embedContent and walk them until one answers.
	discovered, err := p.listModels(ctx)
	if err != nil {
		logging.From(ctx).Warn("embedding model discovery failed", "error", err)
	}
	for _, candidate := range discovered {
		if tried[candidate] {
			continue
		}
		tried[candidate] = true

		vectors, err := p.callEmbed(ctx, candidate, texts)
		if err == nil {
			p.setWorking(candidate)
			logging.From(ctx).Info("switched to discovered embedding model", "model", candidate)
			return vectors, nil
		}
		if !adapter.IsNotFound(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, goerr.Wrap(lastErr, "no usable embedding model",
		goerr.T(adapter.TagNotFound),
		goerr.V("configured", p.configured),
		goerr.V("discovered", discovered))
}

func (p *GeminiProvider) initialCandidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	if p.working != "" {
		out = append(out, p.working)
	}
	if p.configured != "" && p.configured != p.working {
		out = append(out, p.configured)
	}
	return out
}

func (p *GeminiProvider) setWorking(model string) {
	p.mu.Lock()
	p.working = model
	p.mu.Unlock()
}

func (p *GeminiProvider) callEmbed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return remote.Do(ctx, p.queue, p.policy, func(ctx context.Context) ([][]float32, error) {
		return p.client.EmbedBatch(ctx, model, texts)
	})
}

func (p *GeminiProvider) listModels(ctx context.Context) ([]string, error) {
	return remote.Do(ctx, p.queue, p.policy, func(ctx context.Context) ([]string, error) {
		return p.client.ListEmbeddingModels(ctx)
	})
}
