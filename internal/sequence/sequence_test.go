package sequence_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/sequence"
	"github.com/Younus004/wisdom/internal/store"
	"github.com/Younus004/wisdom/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(s store.Store) *sequence.Generator {
	return sequence.New(s, nil, store.TxOptions{}, metrics.NewMock())
}

func TestGenerator_Allocate(t *testing.T) {
	ctx := context.Background()

	t.Run("first values start after the floor", func(t *testing.T) {
		g := newGenerator(memstore.New())

		receipt, err := g.Allocate(ctx, sequence.ReceiptNo)
		require.NoError(t, err)
		assert.Equal(t, int64(10001), receipt)

		bill, err := g.Allocate(ctx, sequence.BillNo)
		require.NoError(t, err)
		assert.Equal(t, int64(1001), bill)

		adm, err := g.Allocate(ctx, sequence.AdmissionNo)
		require.NoError(t, err)
		assert.Equal(t, "0001", sequence.FormatAdmissionNo(adm, 4))
	})

	t.Run("counters are independent", func(t *testing.T) {
		g := newGenerator(memstore.New())
		for i := 0; i < 3; i++ {
			_, err := g.Allocate(ctx, sequence.ReceiptNo)
			require.NoError(t, err)
		}
		bill, err := g.Allocate(ctx, sequence.BillNo)
		require.NoError(t, err)
		assert.Equal(t, int64(1001), bill)

		last, err := g.Peek(ctx, sequence.ReceiptNo)
		require.NoError(t, err)
		assert.Equal(t, int64(10003), last)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := newGenerator(memstore.New()).Allocate(ctx, "voucher_no")
		require.Error(t, err)
	})

	t.Run("custom floor", func(t *testing.T) {
		g := sequence.New(memstore.New(), map[string]int64{sequence.ReceiptNo: 500}, store.TxOptions{}, nil)
		n, err := g.Allocate(ctx, sequence.ReceiptNo)
		require.NoError(t, err)
		assert.Equal(t, int64(501), n)
	})
}

func TestGenerator_ConcurrentAllocationsAreContiguous(t *testing.T) {
	for _, callers := range []int{2, 5, 10, 20} {
		t.Run(fmt.Sprintf("%d callers", callers), func(t *testing.T) {
			ctx := context.Background()
			// Default options: the shipped bound of five attempts.
			g := newGenerator(memstore.New())

			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				values []int64
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					n, err := g.Allocate(ctx, sequence.ReceiptNo)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					values = append(values, n)
					mu.Unlock()
				}()
			}
			wg.Wait()

			require.Len(t, values, callers)
			sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
			for i, v := range values {
				assert.Equal(t, int64(10001+i), v)
			}
		})
	}
}

// racingStore loses every commit to a concurrent writer.
type racingStore struct {
	store.Store
}

func (r racingStore) CompareAndSwap(ctx context.Context, collection, id string, v int64, data json.RawMessage) (store.Document, error) {
	return store.Document{}, store.ErrVersionMismatch
}

func TestGenerator_ContentionExceeded(t *testing.T) {
	g := sequence.New(racingStore{memstore.New()}, nil, store.TxOptions{MaxAttempts: 2}, metrics.NewMock())

	_, err := g.Allocate(context.Background(), sequence.ReceiptNo)
	require.ErrorIs(t, err, apperr.ErrContentionExceeded)
}
