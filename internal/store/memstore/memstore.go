// Package memstore is an in-memory store.Store. Every operation takes a
// single mutex, so compare-and-swap is linearizable across goroutines.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/store"
)

type record struct {
	doc store.Document
	seq int64
}

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]*record
	seq         int64
	now         func() time.Time
}

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*record),
		now:         time.Now,
	}
}

func (s *Store) Get(_ context.Context, collection, id string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	return clone(rec.doc), nil
}

func (s *Store) CompareAndSwap(_ context.Context, collection, id string, expectedVersion int64, data json.RawMessage) (store.Document, error) {
	if !json.Valid(data) {
		return store.Document{}, fmt.Errorf("%s/%s: invalid JSON document", collection, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*record)
		s.collections[collection] = coll
	}

	now := s.now().UTC()
	rec, exists := coll[id]
	switch {
	case !exists && expectedVersion == 0:
		s.seq++
		rec = &record{
			seq: s.seq,
			doc: store.Document{
				Collection: collection,
				ID:         id,
				CreatedAt:  now,
			},
		}
		coll[id] = rec
	case !exists || rec.doc.Version != expectedVersion:
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrVersionMismatch)
	}

	rec.doc.Version++
	rec.doc.Data = append(json.RawMessage(nil), data...)
	rec.doc.UpdatedAt = now
	return clone(rec.doc), nil
}

func (s *Store) Query(_ context.Context, collection string, q store.Query) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		if err := q.Validate(); err != nil {
			yield(store.Document{}, err)
			return
		}

		docs, err := s.snapshot(collection, q)
		if err != nil {
			yield(store.Document{}, err)
			return
		}
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

type candidate struct {
	rec    *record
	fields map[string]any
}

// snapshot selects, orders and limits the matches while holding the lock.
func (s *Store) snapshot(collection string, q store.Query) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []candidate
	for _, rec := range s.collections[collection] {
		var fields map[string]any
		if err := json.Unmarshal(rec.doc.Data, &fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, rec.doc.ID, err)
		}
		ok, err := store.Matches(fields, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, candidate{rec: rec, fields: fields})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if q.OrderBy != "" {
			if c, ok := store.Compare(a.fields[q.OrderBy], b.fields[q.OrderBy]); ok && c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		if q.Desc {
			return a.rec.seq > b.rec.seq
		}
		return a.rec.seq < b.rec.seq
	})

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	docs := make([]store.Document, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, clone(m.rec.doc))
	}
	return docs, nil
}

func clone(d store.Document) store.Document {
	d.Data = append(json.RawMessage(nil), d.Data...)
	return d
}
