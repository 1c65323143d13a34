package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"

	"github.com/eapache/go-resiliency/retrier"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 5 * time.Millisecond
	maxDelay           = 200 * time.Millisecond
)

// UpdateFunc computes the next value of a record from its current state.
// current.Exists() is false for an absent record. Returning an error aborts
// the transaction without writing.
type UpdateFunc func(current Document) (any, error)

type TxOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// OnConflict is called each time a commit loses to a concurrent writer.
	OnConflict func(attempt int)
}

func (o TxOptions) withDefaults() TxOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	return o
}

type conflictClassifier struct{}

func (conflictClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case errors.Is(err, ErrVersionMismatch):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// Transact runs read, fn, conditional write as one all-or-nothing unit and
// repeats the whole cycle when a concurrent writer commits in between.
// After MaxAttempts lost commits it fails with apperr.ErrContentionExceeded.
func Transact(ctx context.Context, s Store, collection, id string, opts TxOptions, fn UpdateFunc) (Document, error) {
	opts = opts.withDefaults()

	r := retrier.New(backoff(opts.MaxAttempts-1, opts.BaseDelay), conflictClassifier{})
	r.SetJitter(0.25)

	var (
		out     Document
		attempt int
	)
	err := r.RunCtx(ctx, func(ctx context.Context) error {
		attempt++

		current, err := s.Get(ctx, collection, id)
		if errors.Is(err, apperr.ErrNotFound) {
			current = Document{Collection: collection, ID: id}
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		data, err := marshal(collection, id, next)
		if err != nil {
			return err
		}

		out, err = s.CompareAndSwap(ctx, collection, id, current.Version, data)
		if errors.Is(err, ErrVersionMismatch) && opts.OnConflict != nil {
			opts.OnConflict(attempt)
		}
		return err
	})
	if errors.Is(err, ErrVersionMismatch) {
		return Document{}, fmt.Errorf("%s/%s after %d attempts: %w", collection, id, attempt, apperr.ErrContentionExceeded)
	}
	if err != nil {
		return Document{}, err
	}
	return out, nil
}

// backoff doubles the delay between attempts up to maxDelay.
func backoff(retries int, base time.Duration) []time.Duration {
	delays := make([]time.Duration, retries)
	next := base
	for i := range delays {
		delays[i] = next
		next = min(next*2, maxDelay)
	}
	return delays
}
