// Package reindex rebuilds the external vector index from the canonical item
// store. The rebuild is a full replacement, not an incremental update: chunk
// IDs are deterministic, so rerunning with unchanged items reproduces the
// exact same index contents.
package reindex

import (
	"context"

	"github.com/kyohei-s/kiroku/pkg/adapter"
	"github.com/kyohei-s/kiroku/pkg/itemstore"
	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/kyohei-s/kiroku/pkg/service/embedding"
	"github.com/kyohei-s/kiroku/pkg/service/splitter"
	"github.com/kyohei-s/kiroku/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase rebuilds the vector index from catalog items
type UseCase struct {
	items    *itemstore.Store
	gateway  *embedding.Gateway
	index    adapter.VectorIndex
	splitter *splitter.Splitter

	// Progress, when set, is called after each item's chunks are embedded.
	Progress func(done, total int)
}

func New(items *itemstore.Store, gateway *embedding.Gateway, index adapter.VectorIndex) *UseCase {
	return &UseCase{
		items:    items,
		gateway:  gateway,
		index:    index,
		splitter: splitter.New(splitter.DefaultChunkSize, splitter.DefaultChunkOverlap),
	}
}

// Result reports how much was indexed
type Result struct {
	Items  int
	Chunks int
}

// Run loads every item, splits it into overlapping chunks, embeds them and
// replaces the index contents under stable "itemID:chunkIndex" identifiers.
func (u *UseCase) Run(ctx context.Context) (*Result, error) {
	items, err := u.items.List()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list items")
	}

	var (
		chunks  []*model.Chunk
		vectors [][]float32
	)
	for i, item := range items {
		itemChunks := u.splitItem(item)
		if len(itemChunks) > 0 {
			texts := make([]string, len(itemChunks))
			for j, c := range itemChunks {
				texts[j] = c.Text
			}
			itemVectors, err := u.gateway.EmbedDocuments(ctx, texts)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to embed chunks", goerr.V("itemID", item.ID))
			}
			chunks = append(chunks, itemChunks...)
			vectors = append(vectors, itemVectors...)
		}
		if u.Progress != nil {
			u.Progress(i+1, len(items))
		}
	}

	// Full replace. Some index builds lack bulk delete; stale chunks are
	// tolerated there and overwritten on ID collision by the upsert below.
	if err := u.index.Clear(ctx); err != nil {
		logging.From(ctx).Warn("failed to clear vector index; stale chunks may remain", "error", err)
	}

	if len(chunks) > 0 {
		if err := u.index.Upsert(ctx, chunks, vectors); err != nil {
			return nil, goerr.Wrap(err, "failed to upsert chunks", goerr.V("chunks", len(chunks)))
		}
	}

	return &Result{Items: len(items), Chunks: len(chunks)}, nil
}

func (u *UseCase) splitItem(item *model.Item) []*model.Chunk {
	parts := u.splitter.Split(item.Content)
	chunks := make([]*model.Chunk, len(parts))
	for i, text := range parts {
		chunks[i] = &model.Chunk{
			ItemID: item.ID,
			Index:  i,
			Text:   text,
			Title:  item.Title,
			Source: item.Source,
			Tags:   item.Tags,
		}
	}
	return chunks
}
