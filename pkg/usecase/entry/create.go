package entry

import (
	"context"
	"strings"

	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/kyohei-s/kiroku/pkg/repository"
	"github.com/kyohei-s/kiroku/pkg/service/embedding"
	"github.com/kyohei-s/kiroku/pkg/utils/dates"
	"github.com/kyohei-s/kiroku/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase creates journal entries and their embeddings
type UseCase struct {
	repo    repository.Repository
	gateway *embedding.Gateway
}

func New(repo repository.Repository, gateway *embedding.Gateway) *UseCase {
	return &UseCase{
		repo:    repo,
		gateway: gateway,
	}
}

// CreateInput contains parameters for creating an entry
type CreateInput struct {
	Date    string
	Title   string
	Content string
}

// CreateOutput reports the persisted entry and whether a vector was stored
type CreateOutput struct {
	ID       model.EntryID
	Date     string
	Embedded bool
}

// Create persists the entry, then embeds "date\ntitle\ncontent" and stores
// the vector under the gateway's model key. A failed or disabled embedding
// leaves the entry in place; it simply never surfaces via similarity ranking
// until re-registered.
func (u *UseCase) Create(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	if strings.TrimSpace(input.Date) == "" {
		return nil, goerr.Wrap(model.ErrValidation, "date is required")
	}

	dateISO, ok := dates.NormalizeToISO(strings.TrimSpace(input.Date))
	if !ok {
		// Keep unrecognized notations as-is so the caller's value is at
		// least retrievable by listing.
		dateISO = strings.TrimSpace(input.Date)
	}

	e := &model.Entry{
		Date:    dateISO,
		Title:   strings.TrimSpace(input.Title),
		Content: strings.TrimSpace(input.Content),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	id, err := u.repo.PutEntry(ctx, e)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save entry")
	}
	e.ID = id

	vec, modelKey, err := u.gateway.Embed(ctx, e.Document())
	if err != nil {
		logging.From(ctx).Warn("failed to embed entry; it will not appear in similarity results",
			"id", id, "error", err)
		return &CreateOutput{ID: id, Date: dateISO}, nil
	}
	if vec == nil {
		return &CreateOutput{ID: id, Date: dateISO}, nil
	}

	// modelKey identifies the provider that produced vec, which is the local
	// fallback when the remote ran out of quota.
	emb := &model.EntryEmbedding{
		EntryID:  id,
		ModelKey: modelKey,
		Vector:   vec,
	}
	if err := u.repo.PutEmbedding(ctx, emb); err != nil {
		return nil, goerr.Wrap(err, "failed to save embedding", goerr.V("id", id))
	}

	return &CreateOutput{ID: id, Date: dateISO, Embedded: true}, nil
}
