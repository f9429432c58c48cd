package embedding_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/kyohei-s/kiroku/pkg/adapter"
	"github.com/kyohei-s/kiroku/pkg/service/embedding"
	"github.com/kyohei-s/kiroku/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// mockProvider scripts per-call behavior for gateway tests
type mockProvider struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
	batchFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls     int
}

func (m *mockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	return m.embedFunc(ctx, text)
}

func (m *mockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	return m.batchFunc(ctx, texts)
}

func (m *mockProvider) ModelKey() string { return "mock:test" }

func quotaErr() error {
	return goerr.New("quota exhausted", goerr.T(adapter.TagQuota))
}

func TestGatewayDisabled(t *testing.T) {
	ctx := context.Background()
	g := embedding.NewGateway(nil)

	gt.V(t, g.Enabled()).Equal(false)
	gt.V(t, g.ModelKey()).Equal("")

	vec, modelKey, err := g.Embed(ctx, "some text")
	gt.NoError(t, err)
	gt.V(t, vec == nil).Equal(true)
	gt.V(t, modelKey).Equal("")
}

func TestGatewayBlankText(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			t.Fatal("provider must not be called for blank input")
			return nil, nil
		},
	}
	g := embedding.NewGateway(provider)

	vec, modelKey, err := g.Embed(ctx, "  \t ")
	gt.NoError(t, err)
	gt.V(t, vec == nil).Equal(true)
	gt.V(t, modelKey).Equal("")
	gt.V(t, provider.calls).Equal(0)
}

func TestGatewayQuotaFallback(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, quotaErr()
		},
	}
	g := embedding.NewGateway(provider)

	vec, modelKey, err := g.Embed(ctx, "fall back please")
	gt.NoError(t, err)
	gt.A(t, vec).Length(256)

	// The returned key names the fallback, not the remote provider: the
	// vector must never be stored or compared under the remote key.
	gt.V(t, modelKey).Equal("localhash:v1")
	gt.V(t, g.ModelKey()).Equal("mock:test")

	// Deterministic: the fallback gives the same vector as a pure local run.
	local, err := embedding.NewLocalHash().Embed(ctx, "fall back please")
	gt.NoError(t, err)
	for i := range vec {
		gt.V(t, vec[i]).Equal(local[i])
	}
}

func TestGatewayReportsProducingModelKey(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0, 0, 0, 0, 0, 0}, nil
		},
	}
	g := embedding.NewGateway(provider)

	_, modelKey, err := g.Embed(ctx, "text")
	gt.NoError(t, err)
	gt.V(t, modelKey).Equal("mock:test")
}

func TestGatewayNonQuotaErrorPropagates(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, goerr.New("bad credentials", goerr.T(adapter.TagAuth))
		},
	}
	g := embedding.NewGateway(provider)

	_, _, err := g.Embed(ctx, "text")
	gt.Error(t, err)
	gt.V(t, adapter.IsAuth(err)).Equal(true)
}

func TestEmbedDocumentsSubBatching(t *testing.T) {
	ctx := context.Background()

	var batches [][]string
	provider := &mockProvider{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			batches = append(batches, texts)
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, 0, 0, 0, 0, 0, 0, 0}
			}
			return out, nil
		},
	}
	g := embedding.NewGateway(provider, embedding.WithBatchSize(3))

	texts := []string{"a", "b", "c", "d", "e", "f", "g"}
	vectors, err := g.EmbedDocuments(ctx, texts)
	gt.NoError(t, err)
	gt.A(t, vectors).Length(7)

	gt.A(t, batches).Length(3)
	gt.A(t, batches[0]).Length(3)
	gt.A(t, batches[1]).Length(3)
	gt.A(t, batches[2]).Length(1)
}

func TestEmbedDocumentsQuotaSwitchesRemaining(t *testing.T) {
	ctx := context.Background()

	calls := 0
	provider := &mockProvider{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			calls++
			if calls == 1 {
				out := make([][]float32, len(texts))
				for i := range texts {
					out[i] = []float32{1, 0, 0, 0, 0, 0, 0, 0}
				}
				return out, nil
			}
			return nil, quotaErr()
		},
	}
	g := embedding.NewGateway(provider, embedding.WithBatchSize(2))

	vectors, err := g.EmbedDocuments(ctx, []string{"a", "b", "c", "d", "e"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(5)

	// Remote was tried for batch one and two only; batch three went straight
	// to the local fallback.
	gt.V(t, calls).Equal(2)
	gt.A(t, vectors[2]).Length(256)
	gt.A(t, vectors[4]).Length(256)
}

func TestEmbedDocumentsEmptyVectorIsHardError(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			out[0] = []float32{}
			return out, nil
		},
	}
	g := embedding.NewGateway(provider)

	_, err := g.EmbedDocuments(ctx, []string{"a", "b"})
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("empty vector")
}

func TestEmbedDocumentsCountMismatchIsHardError(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0, 0, 0, 0, 0, 0}}, nil
		},
	}
	g := embedding.NewGateway(provider)

	_, err := g.EmbedDocuments(ctx, []string{"a", "b", "c"})
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("wrong number of vectors")
}

func TestEmbedDocumentsDisabledWarns(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logging.With(context.Background(), logging.New("warn", buf))

	g := embedding.NewGateway(nil)
	vectors, err := g.EmbedDocuments(ctx, []string{"a", "b"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(2)
	gt.A(t, vectors[0]).Length(256)

	// A keyless reindex still works, but it must not be mistakable for a
	// real remote index.
	gt.S(t, buf.String()).Contains("embeddings are disabled")
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	g := embedding.NewGateway(nil)
	vectors, err := g.EmbedDocuments(context.Background(), nil)
	gt.NoError(t, err)
	gt.V(t, vectors == nil).Equal(true)
}
