// Package pgstore keeps every collection in a single Postgres table of JSONB
// documents. Compare-and-swap is a version-guarded UPDATE or an
// INSERT ... ON CONFLICT DO NOTHING, so correctness under concurrent
// operators is delegated to Postgres row locking.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/Younus004/wisdom/common/metrics"
	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/store"

	"github.com/uptrace/bun"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	Collection string          `bun:"collection,pk"`
	ID         string          `bun:"id,pk"`
	Seq        int64           `bun:"seq,type:bigserial,notnull"`
	Version    int64           `bun:"version,notnull"`
	Data       json.RawMessage `bun:"data,type:jsonb,notnull"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

func (d *Document) toStore() store.Document {
	return store.Document{
		Collection: d.Collection,
		ID:         d.ID,
		Version:    d.Version,
		Data:       d.Data,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type Store struct {
	db      *bun.DB
	metrics *metrics.DatabaseMetrics
}

func New(db *bun.DB, m *metrics.DatabaseMetrics) *Store {
	return &Store{db: db, metrics: m}
}

// Migrate creates the documents table and its insertion-order index.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	_, err := s.db.NewCreateIndex().
		Model((*Document)(nil)).
		Index("documents_collection_seq_idx").
		Column("collection", "seq").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create documents index: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	start := time.Now()
	row := new(Document)
	err := s.db.NewSelect().
		Model(row).
		Where("collection = ?", collection).
		Where("id = ?", id).
		Scan(ctx)

	s.record(ctx, "select", collection, start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return store.Document{}, unavailable(err)
	}
	return row.toStore(), nil
}

func (s *Store) CompareAndSwap(ctx context.Context, collection, id string, expectedVersion int64, data json.RawMessage) (store.Document, error) {
	if expectedVersion == 0 {
		return s.insert(ctx, collection, id, data)
	}

	start := time.Now()
	row := new(Document)
	err := s.db.NewUpdate().
		Model(row).
		Set("data = ?", data).
		Set("version = version + 1").
		Set("updated_at = current_timestamp").
		Where("collection = ?", collection).
		Where("id = ?", id).
		Where("version = ?", expectedVersion).
		Returning("*").
		Scan(ctx)

	s.record(ctx, "update", collection, start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrVersionMismatch)
	}
	if err != nil {
		return store.Document{}, unavailable(err)
	}
	return row.toStore(), nil
}

func (s *Store) insert(ctx context.Context, collection, id string, data json.RawMessage) (store.Document, error) {
	start := time.Now()
	row := &Document{
		Collection: collection,
		ID:         id,
		Version:    1,
		Data:       data,
	}
	err := s.db.NewInsert().
		Model(row).
		Column("collection", "id", "version", "data").
		On("CONFLICT (collection, id) DO NOTHING").
		Returning("*").
		Scan(ctx)

	s.record(ctx, "insert", collection, start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrVersionMismatch)
	}
	if err != nil {
		return store.Document{}, unavailable(err)
	}
	return row.toStore(), nil
}

func (s *Store) Query(ctx context.Context, collection string, q store.Query) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		sel, err := s.buildQuery(collection, q)
		if err != nil {
			yield(store.Document{}, err)
			return
		}

		start := time.Now()
		rows, err := sel.Rows(ctx)
		s.record(ctx, "select", collection, start, err)
		if err != nil {
			yield(store.Document{}, unavailable(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			row := new(Document)
			if err := s.db.ScanRow(ctx, rows, row); err != nil {
				yield(store.Document{}, unavailable(err))
				return
			}
			if !yield(row.toStore(), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(store.Document{}, unavailable(err))
		}
	}
}

func (s *Store) buildQuery(collection string, q store.Query) (*bun.SelectQuery, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	sel := s.db.NewSelect().
		Model((*Document)(nil)).
		Where("collection = ?", collection)

	for _, f := range q.Filters {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		// f.Op is one of the validated comparison operators.
		sel = sel.Where("data -> ? "+string(f.Op)+" ?::jsonb", f.Field, string(value))
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if q.OrderBy != "" {
		sel = sel.OrderExpr("data -> ? "+dir+", seq "+dir, q.OrderBy)
	} else {
		sel = sel.OrderExpr("seq " + dir)
	}

	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}
	return sel, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) record(ctx context.Context, op, collection string, start time.Time, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	s.metrics.RecordQuery(ctx, op, rootCollection(collection), time.Since(start), err)
}

// rootCollection keeps metric cardinality bounded for child collections.
func rootCollection(collection string) string {
	root, _, _ := strings.Cut(collection, "/")
	return root
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)
}
