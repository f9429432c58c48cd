package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// EntryID is assigned by the repository on insert and is monotonic.
type EntryID int64

// Entry is a dated journal record. Entries are immutable once created.
type Entry struct {
	ID        EntryID
	Date      string // ISO-8601 calendar date, e.g. "2026-01-25"
	Title     string
	Content   string
	CreatedAt time.Time
}

// Validate checks required fields before insertion
func (x *Entry) Validate() error {
	if strings.TrimSpace(x.Date) == "" {
		return goerr.Wrap(ErrValidation, "date is required")
	}
	if strings.TrimSpace(x.Title) == "" {
		return goerr.Wrap(ErrValidation, "title is required")
	}
	if strings.TrimSpace(x.Content) == "" {
		return goerr.Wrap(ErrValidation, "content is required")
	}
	return nil
}

// Document returns the text that is embedded for similarity search.
func (x *Entry) Document() string {
	return x.Date + "\n" + x.Title + "\n" + x.Content
}

// MinVectorLen is the minimum number of elements for a stored vector to be
// considered well-formed. Shorter vectors are treated as absent.
const MinVectorLen = 8

// EntryEmbedding is a vector for one entry produced by one embedding model.
// The (EntryID, ModelKey) pair is unique; vectors from different models are
// never compared with each other.
type EntryEmbedding struct {
	EntryID   EntryID
	ModelKey  string
	Vector    []float32
	CreatedAt time.Time
}

// Validate rejects vectors too short to be a real embedding, so that a
// truncated or garbage write never surfaces in similarity ranking.
func (x *EntryEmbedding) Validate() error {
	if x.ModelKey == "" {
		return goerr.Wrap(ErrValidation, "model key is required")
	}
	if len(x.Vector) < MinVectorLen {
		return goerr.Wrap(ErrMalformedVector, "vector is too short", goerr.V("len", len(x.Vector)))
	}
	return nil
}
