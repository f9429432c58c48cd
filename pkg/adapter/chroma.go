package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// VectorIndex is the external index the catalog items are projected into. The
// index is disposable; the item store stays canonical.
type VectorIndex interface {
	// Upsert writes chunks and their vectors under deterministic chunk IDs.
	Upsert(ctx context.Context, chunks []*model.Chunk, vectors [][]float32) error

	// Clear removes every record from the index.
	Clear(ctx context.Context) error

	// Query returns the IDs of the k nearest chunks.
	Query(ctx context.Context, vector []float32, k int) ([]string, error)
}

// ChromaClient talks to a Chroma server over its v1 REST API.
type ChromaClient struct {
	baseURL    string
	collection string
	client     *http.Client

	mu           sync.Mutex
	collectionID string
}

func NewChroma(baseURL, collection string) *ChromaClient {
	return &ChromaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chromaUpsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
	Documents  []string         `json:"documents"`
}

type chromaQueryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
}

type chromaQueryResponse struct {
	IDs [][]string `json:"ids"`
}

// ensureCollection resolves the collection ID, creating the collection empty
// if it does not exist yet.
func (c *ChromaClient) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.collectionID != "" {
		return c.collectionID, nil
	}

	var col chromaCollection
	err := c.call(ctx, http.MethodPost, "/api/v1/collections", map[string]any{
		"name":          c.collection,
		"get_or_create": true,
	}, &col)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get or create collection", goerr.V("collection", c.collection))
	}
	if col.ID == "" {
		return "", goerr.New("collection response has no id", goerr.V("collection", c.collection))
	}

	c.collectionID = col.ID
	return col.ID, nil
}

func (c *ChromaClient) Upsert(ctx context.Context, chunks []*model.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return goerr.New("chunk and vector counts differ",
			goerr.V("chunks", len(chunks)), goerr.V("vectors", len(vectors)))
	}
	if len(chunks) == 0 {
		return nil
	}

	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(chunks)),
		Embeddings: vectors,
		Metadatas:  make([]map[string]any, len(chunks)),
		Documents:  make([]string, len(chunks)),
	}
	for i, chunk := range chunks {
		req.IDs[i] = chunk.ChunkID()
		req.Documents[i] = chunk.Text
		meta := map[string]any{
			"itemId": string(chunk.ItemID),
			"chunk":  chunk.Index,
			"title":  chunk.Title,
		}
		if chunk.Source != "" {
			meta["source"] = chunk.Source
		}
		if len(chunk.Tags) > 0 {
			// Chroma metadata values must be scalars.
			meta["tags"] = strings.Join(chunk.Tags, ",")
		}
		req.Metadatas[i] = meta
	}

	if err := c.call(ctx, http.MethodPost, "/api/v1/collections/"+id+"/upsert", req, nil); err != nil {
		return goerr.Wrap(err, "failed to upsert chunks", goerr.V("count", len(chunks)))
	}
	return nil
}

func (c *ChromaClient) Clear(ctx context.Context) error {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}

	// An empty filter deletes everything on servers that support it.
	if err := c.call(ctx, http.MethodPost, "/api/v1/collections/"+id+"/delete", map[string]any{}, nil); err != nil {
		return goerr.Wrap(err, "failed to clear collection", goerr.V("collection", c.collection))
	}
	return nil
}

func (c *ChromaClient) Query(ctx context.Context, vector []float32, k int) ([]string, error) {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	var resp chromaQueryResponse
	req := chromaQueryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        k,
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/collections/"+id+"/query", req, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to query collection")
	}

	if len(resp.IDs) == 0 {
		return nil, nil
	}
	return resp.IDs[0], nil
}

func (c *ChromaClient) call(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return goerr.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "request failed", goerr.T(TagTransient), goerr.V("path", path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return goerr.New(fmt.Sprintf("chroma API error (%d)", resp.StatusCode),
			goerr.V("path", path), goerr.V("body", string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
	}
	return nil
}
