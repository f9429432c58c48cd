package entry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kyohei-s/kiroku/pkg/adapter"
	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/kyohei-s/kiroku/pkg/repository"
	"github.com/kyohei-s/kiroku/pkg/service/embedding"
	"github.com/kyohei-s/kiroku/pkg/usecase/entry"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// quotaProvider always fails with a quota-classified error
type quotaProvider struct{}

func (p *quotaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, goerr.New("quota exhausted", goerr.T(adapter.TagQuota))
}

func (p *quotaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, goerr.New("quota exhausted", goerr.T(adapter.TagQuota))
}

func (p *quotaProvider) ModelKey() string { return "gemini:text-embedding-004" }

func TestCreateNormalizesDate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	uc := entry.New(repo, embedding.NewGateway(embedding.NewLocalHash()))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "slash", input: "2026/1/25", want: "2026-01-25"},
		{name: "kanji", input: "2026年1月25日", want: "2026-01-25"},
		{name: "already iso", input: "2026-01-25", want: "2026-01-25"},
		{name: "unrecognized kept as-is", input: "Jan 25", want: "Jan 25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := uc.Create(ctx, &entry.CreateInput{
				Date:    tt.input,
				Title:   "title",
				Content: "content",
			})
			gt.NoError(t, err)
			gt.V(t, out.Date).Equal(tt.want)
		})
	}
}

func TestCreateWithLocalEmbeddings(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	gateway := embedding.NewGateway(embedding.NewLocalHash())
	uc := entry.New(repo, gateway)

	out, err := uc.Create(ctx, &entry.CreateInput{
		Date:    "2026-01-25",
		Title:   "Planning",
		Content: "Designed the schema.",
	})
	gt.NoError(t, err)
	gt.V(t, out.Embedded).Equal(true)

	candidates, err := repo.ListCandidates(ctx, "2026-01-25", gateway.ModelKey())
	gt.NoError(t, err)
	gt.A(t, candidates).Length(1)
	gt.A(t, candidates[0].Vector).Length(256)
}

func TestCreateWithEmbeddingsDisabled(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	uc := entry.New(repo, embedding.NewGateway(nil))

	out, err := uc.Create(ctx, &entry.CreateInput{
		Date:    "2026-01-25",
		Title:   "Planning",
		Content: "Designed the schema.",
	})
	gt.NoError(t, err)
	gt.V(t, out.Embedded).Equal(false)

	// The entry is still stored and retrievable.
	candidates, err := repo.ListCandidates(ctx, "2026-01-25", "")
	gt.NoError(t, err)
	gt.A(t, candidates).Length(1)
	gt.V(t, candidates[0].Vector == nil).Equal(true)
}

func TestCreateQuotaFallbackKeepsModelKeysSeparate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	uc := entry.New(repo, embedding.NewGateway(&quotaProvider{}))

	out, err := uc.Create(ctx, &entry.CreateInput{
		Date:    "2026-01-25",
		Title:   "Planning",
		Content: "Designed the schema.",
	})
	gt.NoError(t, err)
	gt.V(t, out.Embedded).Equal(true)

	// The remote key must stay clean: a later recovered Gemini query would
	// otherwise score its vectors against this local-hash one.
	remote, err := repo.ListCandidates(ctx, "", "gemini:text-embedding-004")
	gt.NoError(t, err)
	gt.A(t, remote).Length(1)
	gt.V(t, remote[0].Vector == nil).Equal(true)

	// The fallback vector is stored under the key of its true producer.
	local, err := repo.ListCandidates(ctx, "", "localhash:v1")
	gt.NoError(t, err)
	gt.A(t, local).Length(1)
	gt.A(t, local[0].Vector).Length(256)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	uc := entry.New(repository.NewMemory(), embedding.NewGateway(nil))

	tests := []struct {
		name  string
		input *entry.CreateInput
	}{
		{name: "empty date", input: &entry.CreateInput{Title: "t", Content: "c"}},
		{name: "empty title", input: &entry.CreateInput{Date: "2026-01-25", Content: "c"}},
		{name: "empty content", input: &entry.CreateInput{Date: "2026-01-25", Title: "t"}},
		{name: "whitespace only", input: &entry.CreateInput{Date: "2026-01-25", Title: "  ", Content: "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Create(ctx, tt.input)
			gt.Error(t, err)
			gt.V(t, errors.Is(err, model.ErrValidation)).Equal(true)
		})
	}
}
