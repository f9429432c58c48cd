package adapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kyohei-s/kiroku/pkg/adapter"
	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/m-mizutani/gt"
)

func newChromaServer(t *testing.T) (*httptest.Server, *[]map[string]any) {
	t.Helper()

	var upserts []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "col-1", "name": "test"})
	})
	mux.HandleFunc("/api/v1/collections/col-1/upsert", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		upserts = append(upserts, body)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/collections/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ids": [][]string{{"item-1:0", "item-1:1"}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &upserts
}

func TestChromaUpsert(t *testing.T) {
	ctx := context.Background()
	srv, upserts := newChromaServer(t)
	c := adapter.NewChroma(srv.URL, "test")

	chunks := []*model.Chunk{
		{ItemID: "item-1", Index: 0, Text: "first chunk", Title: "Note", Tags: []string{"a", "b"}},
		{ItemID: "item-1", Index: 1, Text: "second chunk", Title: "Note", Source: "web"},
	}
	vectors := [][]float32{
		{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8},
		{0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1},
	}

	gt.NoError(t, c.Upsert(ctx, chunks, vectors))
	gt.A(t, *upserts).Length(1)

	body := (*upserts)[0]
	ids := body["ids"].([]any)
	gt.A(t, ids).Length(2)
	gt.V(t, ids[0].(string)).Equal("item-1:0")
	gt.V(t, ids[1].(string)).Equal("item-1:1")

	metas := body["metadatas"].([]any)
	first := metas[0].(map[string]any)
	gt.V(t, first["itemId"].(string)).Equal("item-1")
	gt.V(t, first["tags"].(string)).Equal("a,b")
	second := metas[1].(map[string]any)
	gt.V(t, second["source"].(string)).Equal("web")
}

func TestChromaUpsertCountMismatch(t *testing.T) {
	srv, _ := newChromaServer(t)
	c := adapter.NewChroma(srv.URL, "test")

	err := c.Upsert(context.Background(), []*model.Chunk{{ItemID: "x", Index: 0, Text: "t"}}, nil)
	gt.Error(t, err)
}

func TestChromaQuery(t *testing.T) {
	srv, _ := newChromaServer(t)
	c := adapter.NewChroma(srv.URL, "test")

	ids, err := c.Query(context.Background(), []float32{1, 0, 0, 0, 0, 0, 0, 0}, 2)
	gt.NoError(t, err)
	gt.A(t, ids).Length(2)
	gt.V(t, ids[0]).Equal("item-1:0")
}

func TestChromaClear(t *testing.T) {
	srv, _ := newChromaServer(t)
	c := adapter.NewChroma(srv.URL, "test")
	gt.NoError(t, c.Clear(context.Background()))
}

func TestChromaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := adapter.NewChroma(srv.URL, "test")
	err := c.Clear(context.Background())
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("chroma API error")
}

func TestChromaNetworkErrorIsTransient(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := adapter.NewChroma(srv.URL, "test")
	err := c.Clear(context.Background())
	gt.Error(t, err)
	gt.V(t, adapter.IsTransient(err)).Equal(true)
}
