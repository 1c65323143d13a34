package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/store"
	"github.com/Younus004/wisdom/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Value int `json:"value"`
}

func increment(current store.Document) (any, error) {
	var c counter
	if current.Exists() {
		if err := current.Decode(&c); err != nil {
			return nil, err
		}
	}
	c.Value++
	return c, nil
}

func TestTransact_CreatesAbsentRecord(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	doc, err := store.Transact(ctx, s, "counters", "hits", store.TxOptions{}, increment)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	var c counter
	require.NoError(t, doc.Decode(&c))
	assert.Equal(t, 1, c.Value)
}

func TestTransact_NoLostUpdates(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	opts := store.TxOptions{MaxAttempts: 100}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Transact(ctx, s, "counters", "hits", opts, increment)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	doc, err := s.Get(ctx, "counters", "hits")
	require.NoError(t, err)
	var c counter
	require.NoError(t, doc.Decode(&c))
	assert.Equal(t, workers, c.Value)
}

func TestTransact_AbortLeavesRecordUnchanged(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	_, err := store.Create(ctx, s, "counters", "hits", counter{Value: 7})
	require.NoError(t, err)

	boom := errors.New("precondition failed")
	_, err = store.Transact(ctx, s, "counters", "hits", store.TxOptions{}, func(store.Document) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	doc, err := s.Get(ctx, "counters", "hits")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)
	assert.JSONEq(t, `{"value":7}`, string(doc.Data))
}

// conflictingStore loses every commit to a phantom concurrent writer.
type conflictingStore struct {
	store.Store
	commits atomic.Int32
}

func (c *conflictingStore) CompareAndSwap(ctx context.Context, collection, id string, v int64, data json.RawMessage) (store.Document, error) {
	c.commits.Add(1)
	return store.Document{}, store.ErrVersionMismatch
}

func TestTransact_ContentionExceeded(t *testing.T) {
	s := &conflictingStore{Store: memstore.New()}

	var conflicts []int
	opts := store.TxOptions{
		MaxAttempts: 3,
		OnConflict:  func(attempt int) { conflicts = append(conflicts, attempt) },
	}

	_, err := store.Transact(context.Background(), s, "counters", "hits", opts, increment)
	require.ErrorIs(t, err, apperr.ErrContentionExceeded)
	assert.Equal(t, int32(3), s.commits.Load())
	assert.Equal(t, []int{1, 2, 3}, conflicts)
}

func TestAppendChild_RequiresParent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	_, err := store.AppendChild(ctx, s, "enquiries", "missing", "followups", map[string]string{"comment": "hi"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = store.Create(ctx, s, "enquiries", "e1", map[string]string{"name": "Asha"})
	require.NoError(t, err)

	child, err := store.AppendChild(ctx, s, "enquiries", "e1", "followups", map[string]string{"comment": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "enquiries/e1/followups", child.Collection)
	assert.NotEmpty(t, child.ID)
}
