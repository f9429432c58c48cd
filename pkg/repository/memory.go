package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kyohei-s/kiroku/pkg/model"
)

// MemoryRepo is an in-memory Repository used by tests and offline runs.
type MemoryRepo struct {
	mu         sync.Mutex
	nextID     model.EntryID
	entries    []*model.Entry
	embeddings map[model.EntryID]map[string][]float32
}

func NewMemory() *MemoryRepo {
	return &MemoryRepo{
		nextID:     1,
		embeddings: map[model.EntryID]map[string][]float32{},
	}
}

func (r *MemoryRepo) PutEntry(ctx context.Context, entry *model.Entry) (model.EntryID, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *entry
	stored.ID = r.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.nextID++
	r.entries = append(r.entries, &stored)
	return stored.ID, nil
}

func (r *MemoryRepo) PutEmbedding(ctx context.Context, emb *model.EntryEmbedding) error {
	if err := emb.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byModel, ok := r.embeddings[emb.EntryID]
	if !ok {
		byModel = map[string][]float32{}
		r.embeddings[emb.EntryID] = byModel
	}
	byModel[emb.ModelKey] = append([]float32(nil), emb.Vector...)
	return nil
}

func (r *MemoryRepo) ListCandidates(ctx context.Context, date, modelKey string) ([]*Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Candidate
	for _, e := range r.entries {
		if date != "" && e.Date != date {
			continue
		}
		c := &Candidate{Entry: *e}
		if byModel, ok := r.embeddings[e.ID]; ok {
			if v, ok := byModel[modelKey]; ok && len(v) >= model.MinVectorLen {
				c.Vector = append([]float32(nil), v...)
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entry.ID > out[j].Entry.ID })
	return out, nil
}

func (r *MemoryRepo) Close() error {
	return nil
}
