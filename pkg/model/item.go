package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type ItemID string

// NewItemID generates a new unique ItemID
func NewItemID() ItemID {
	return ItemID(uuid.New().String())
}

// Item is a catalog record held in the JSON document collection. It is the
// canonical source for the external vector index, which is a disposable
// projection of these records.
type Item struct {
	ID        ItemID    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks required fields. Title and content must be non-empty after
// trimming.
func (x *Item) Validate() error {
	if strings.TrimSpace(x.Title) == "" {
		return goerr.Wrap(ErrValidation, "title is required")
	}
	if strings.TrimSpace(x.Content) == "" {
		return goerr.Wrap(ErrValidation, "content is required")
	}
	return nil
}

// Clone returns a deep copy so that callers never share the store's slices.
func (x *Item) Clone() *Item {
	c := *x
	if x.Tags != nil {
		c.Tags = append([]string(nil), x.Tags...)
	}
	return &c
}

// ItemCreateInput contains parameters for creating a catalog item
type ItemCreateInput struct {
	Title   string
	Content string
	Source  string
	Tags    []string
}

// ItemPatch is a partial update. Nil fields keep their prior values.
type ItemPatch struct {
	Title   *string
	Content *string
	Source  *string
	Tags    *[]string
}

// NormalizeTags trims each tag and drops the ones that are empty after
// trimming.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
