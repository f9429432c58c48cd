package model

import "fmt"

// Chunk is a bounded slice of an item's content produced for indexing. Chunks
// are never persisted; every reindex regenerates them from the item store.
type Chunk struct {
	ItemID ItemID
	Index  int // 0-based position within the source item
	Text   string

	Title  string
	Source string
	Tags   []string
}

// ChunkID returns the deterministic external-index identifier. Reindexing
// unchanged items reproduces the same IDs, which makes a full index replace
// idempotent.
func (x *Chunk) ChunkID() string {
	return fmt.Sprintf("%s:%d", x.ItemID, x.Index)
}
