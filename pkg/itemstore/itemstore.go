// Package itemstore keeps the catalog item collection in a single JSON file.
// Every mutation reads the whole collection, applies the change in memory and
// atomically replaces the file via rename. Mutations run on one owned
// goroutine in strict submission order, so concurrent callers can never lose
// each other's updates; readers bypass the queue and always observe either
// the pre- or post-mutation file.
package itemstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var errClosed = goerr.New("item store is closed")

type Store struct {
	path string

	mu     sync.RWMutex
	closed bool
	ops    chan func()
	done   chan struct{}
}

// New creates a store backed by the JSON file at path. The file is created on
// first write.
func New(path string) *Store {
	s := &Store{
		path: path,
		ops:  make(chan func()),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Store) run() {
	for fn := range s.ops {
		fn()
	}
	close(s.done)
}

// Close stops the writer goroutine after draining queued mutations.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.ops)
	<-s.done
}

// enqueue submits a mutation and waits for it to finish.
func (s *Store) enqueue(fn func() error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return goerr.Wrap(errClosed, "mutation rejected")
	}

	errCh := make(chan error, 1)
	s.ops <- func() { errCh <- fn() }
	s.mu.RUnlock()

	return <-errCh
}

func (s *Store) readItems() ([]*model.Item, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read item file", goerr.V("path", s.path))
	}

	var items []*model.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, goerr.Wrap(err, "failed to parse item file", goerr.V("path", s.path))
	}
	return items, nil
}

func (s *Store) writeItems(items []*model.Item) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create data directory")
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to encode items")
	}

	tmp := fmt.Sprintf("%s.tmp-%d-%d", s.path, os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write temp file", goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return goerr.Wrap(err, "failed to replace item file", goerr.V("path", s.path))
	}
	return nil
}

// Create validates input and appends a new item.
func (s *Store) Create(input *model.ItemCreateInput) (*model.Item, error) {
	item := &model.Item{
		ID:      model.NewItemID(),
		Title:   strings.TrimSpace(input.Title),
		Content: input.Content,
		Source:  strings.TrimSpace(input.Source),
		Tags:    model.NormalizeTags(input.Tags),
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	err := s.enqueue(func() error {
		items, err := s.readItems()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		item.CreatedAt = now
		item.UpdatedAt = now
		return s.writeItems(append(items, item))
	})
	if err != nil {
		return nil, err
	}
	return item.Clone(), nil
}

// Update applies a partial patch to an existing item. Absent patch fields
// keep their prior values; required fields are re-validated after the merge.
func (s *Store) Update(id model.ItemID, patch *model.ItemPatch) (*model.Item, error) {
	if id == "" {
		return nil, goerr.Wrap(model.ErrValidation, "id is required")
	}

	var updated *model.Item
	err := s.enqueue(func() error {
		items, err := s.readItems()
		if err != nil {
			return err
		}

		idx := -1
		for i, item := range items {
			if item.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return goerr.Wrap(model.ErrItemNotFound, "unknown item", goerr.V("id", id))
		}

		next := items[idx].Clone()
		if patch.Title != nil {
			next.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Content != nil {
			next.Content = *patch.Content
		}
		if patch.Source != nil {
			next.Source = strings.TrimSpace(*patch.Source)
		}
		if patch.Tags != nil {
			next.Tags = model.NormalizeTags(*patch.Tags)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		next.UpdatedAt = time.Now().UTC()

		items[idx] = next
		if err := s.writeItems(items); err != nil {
			return err
		}
		updated = next.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an item and reports whether anything was removed. A missing
// id is not an error.
func (s *Store) Delete(id model.ItemID) (bool, error) {
	var deleted bool
	err := s.enqueue(func() error {
		items, err := s.readItems()
		if err != nil {
			return err
		}

		next := items[:0]
		for _, item := range items {
			if item.ID == id {
				deleted = true
				continue
			}
			next = append(next, item)
		}
		if !deleted {
			return nil
		}
		return s.writeItems(next)
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Get returns a copy of one item, or nil when it does not exist.
func (s *Store) Get(id model.ItemID) (*model.Item, error) {
	items, err := s.readItems()
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ID == id {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

// List returns copies of all items ordered by UpdatedAt descending.
func (s *Store) List() ([]*model.Item, error) {
	items, err := s.readItems()
	if err != nil {
		return nil, err
	}

	out := make([]*model.Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
