package repository

import (
	"context"

	"github.com/kyohei-s/kiroku/pkg/model"
)

// Candidate is an entry joined with its stored vector for one model key.
// Vector is nil when no well-formed vector exists for that key.
type Candidate struct {
	Entry  model.Entry
	Vector []float32
}

// Repository defines the interface for entry and embedding persistence
type Repository interface {
	// PutEntry inserts an entry and returns its assigned ID
	PutEntry(ctx context.Context, entry *model.Entry) (model.EntryID, error)

	// PutEmbedding upserts the vector for (entry, model key)
	PutEmbedding(ctx context.Context, emb *model.EntryEmbedding) error

	// ListCandidates returns entries newest-ID first, each joined with its
	// vector for modelKey. A non-empty date restricts to exact date matches.
	ListCandidates(ctx context.Context, date, modelKey string) ([]*Candidate, error)

	// Close releases the underlying store
	Close() error
}
