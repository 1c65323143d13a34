// Package store defines the document record store every front-office
// operation persists through, plus the retrying transactional update and the
// append-only child insert built on top of its compare-and-swap primitive.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Money fields must be JSON numbers so range filters compare numerically.
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrVersionMismatch is returned by CompareAndSwap when another writer
// committed first. Transact retries on it.
var ErrVersionMismatch = fmt.Errorf("%w: version mismatch", apperr.ErrConflict)

// Document is one stored record. Version is 0 for a record that does not exist.
type Document struct {
	Collection string
	ID         string
	Version    int64
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (d Document) Exists() bool {
	return d.Version > 0
}

func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

type Store interface {
	// Get returns apperr.ErrNotFound when the record is absent.
	Get(ctx context.Context, collection, id string) (Document, error)
	// CompareAndSwap writes data only if the stored version equals
	// expectedVersion. expectedVersion 0 creates a record that must not exist.
	CompareAndSwap(ctx context.Context, collection, id string, expectedVersion int64, data json.RawMessage) (Document, error)
	// Query returns a lazy, finite sequence over the matching records.
	Query(ctx context.Context, collection string, q Query) iter.Seq2[Document, error]
	Ping(ctx context.Context) error
}

// ChildCollection names the sub-collection holding the history of a parent record.
func ChildCollection(collection, id, sub string) string {
	return collection + "/" + id + "/" + sub
}

// Create stores v under a caller-chosen id.
func Create(ctx context.Context, s Store, collection, id string, v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return s.CompareAndSwap(ctx, collection, id, 0, data)
}

// Add stores v under a generated id.
func Add(ctx context.Context, s Store, collection string, v any) (Document, error) {
	return Create(ctx, s, collection, uuid.NewString(), v)
}

// AppendChild inserts an immutable history record under an existing parent.
func AppendChild(ctx context.Context, s Store, collection, id, sub string, v any) (Document, error) {
	if _, err := s.Get(ctx, collection, id); err != nil {
		return Document{}, err
	}
	return Add(ctx, s, ChildCollection(collection, id, sub), v)
}

// Collect drains a query sequence.
func Collect[T any](seq iter.Seq2[Document, error]) ([]T, error) {
	var out []T
	for doc, err := range seq {
		if err != nil {
			return nil, err
		}
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
