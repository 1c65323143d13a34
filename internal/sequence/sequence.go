// Package sequence mints strictly increasing identifiers (receipt, bill and
// admission numbers). Each counter is one versioned record in the store and
// is only ever advanced through store.Transact, so concurrent callers never
// receive the same value.
package sequence

import (
	"context"
	"fmt"

	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/store"
)

const Collection = "counters"

const (
	ReceiptNo   = "receipt_no"
	BillNo      = "bill_no"
	AdmissionNo = "admission_no"
)

// DefaultFloors are the values an unseeded counter starts from. The first
// allocation returns floor+1.
var DefaultFloors = map[string]int64{
	ReceiptNo:   10000,
	BillNo:      1000,
	AdmissionNo: 0,
}

type counter struct {
	LastValue int64 `json:"last_value"`
}

type Generator struct {
	store   store.Store
	floors  map[string]int64
	opts    store.TxOptions
	metrics *metrics.Metrics
}

func New(s store.Store, floors map[string]int64, opts store.TxOptions, m *metrics.Metrics) *Generator {
	merged := make(map[string]int64, len(DefaultFloors)+len(floors))
	for k, v := range DefaultFloors {
		merged[k] = v
	}
	for k, v := range floors {
		merged[k] = v
	}
	return &Generator{store: s, floors: merged, opts: opts, metrics: m}
}

// Allocate returns the successor of the last value handed out for key.
// Retry exhaustion surfaces apperr.ErrContentionExceeded; callers must not
// print or persist anything under a number they did not receive.
func (g *Generator) Allocate(ctx context.Context, key string) (int64, error) {
	floor, ok := g.floors[key]
	if !ok {
		return 0, fmt.Errorf("unknown counter %q", key)
	}

	opts := g.opts
	opts.OnConflict = func(int) { g.metrics.RecordSequenceConflict(ctx, key) }

	var next int64
	_, err := store.Transact(ctx, g.store, Collection, key, opts, func(current store.Document) (any, error) {
		c := counter{LastValue: floor}
		if current.Exists() {
			if err := current.Decode(&c); err != nil {
				return nil, err
			}
			// A counter seeded below its floor is lifted to it.
			c.LastValue = max(c.LastValue, floor)
		}
		next = c.LastValue + 1
		return counter{LastValue: next}, nil
	})
	if err != nil {
		return 0, fmt.Errorf("allocate %s: %w", key, err)
	}

	g.metrics.RecordSequenceAllocation(ctx, key)
	return next, nil
}

// Peek reports the last allocated value without advancing the counter.
func (g *Generator) Peek(ctx context.Context, key string) (int64, error) {
	floor, ok := g.floors[key]
	if !ok {
		return 0, fmt.Errorf("unknown counter %q", key)
	}
	doc, err := g.store.Get(ctx, Collection, key)
	if err != nil {
		if store.IsNotFound(err) {
			return floor, nil
		}
		return 0, err
	}
	var c counter
	if err := doc.Decode(&c); err != nil {
		return 0, err
	}
	return max(c.LastValue, floor), nil
}

// FormatAdmissionNo zero-pads n to width digits.
func FormatAdmissionNo(n int64, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}
