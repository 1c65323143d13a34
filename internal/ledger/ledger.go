// Package ledger applies fee payments to a student's outstanding balance as
// one all-or-nothing store transaction.
package ledger

import (
	"context"
	"fmt"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/datetime"
	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/store"
	"github.com/Younus004/wisdom/internal/student"

	"github.com/shopspring/decimal"
)

type Result struct {
	Paid    decimal.Decimal `json:"paid"`
	Balance decimal.Decimal `json:"balance"`
	// Student is the record as committed.
	Student student.Student `json:"-"`
}

type Ledger struct {
	store   store.Store
	opts    store.TxOptions
	metrics *metrics.Metrics
}

func New(s store.Store, opts store.TxOptions, m *metrics.Metrics) *Ledger {
	return &Ledger{store: s, opts: opts, metrics: m}
}

// ApplyPayment adds amount to paid and subtracts it from balance. A payment
// above the current balance fails with apperr.ErrOverpayment and writes
// nothing. nextDue replaces fee_due_date only for students that already
// have one.
func (l *Ledger) ApplyPayment(ctx context.Context, admissionNo string, amount decimal.Decimal, nextDue datetime.Date) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, apperr.Invalid("amount", "amount must be greater than zero")
	}

	opts := l.opts
	opts.OnConflict = func(int) { l.metrics.RecordLedgerConflict(ctx) }

	var res Result
	_, err := store.Transact(ctx, l.store, student.Collection, admissionNo, opts, func(current store.Document) (any, error) {
		if !current.Exists() {
			return nil, fmt.Errorf("student %s: %w", admissionNo, apperr.ErrNotFound)
		}
		var s student.Student
		if err := current.Decode(&s); err != nil {
			return nil, err
		}

		if amount.GreaterThan(s.Balance) {
			return nil, fmt.Errorf("amount %s, balance %s: %w", amount.StringFixed(2), s.Balance.StringFixed(2), apperr.ErrOverpayment)
		}

		s.Paid = s.Paid.Add(amount)
		s.Balance = s.Balance.Sub(amount)
		if s.FeeDueDate != nil && !nextDue.IsZero() {
			due := nextDue
			s.FeeDueDate = &due
		}

		res = Result{Paid: s.Paid, Balance: s.Balance, Student: s}
		return s, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Balance reads the current balance without locking, for fast rejection of
// obvious overpayments before any number is allocated.
func (l *Ledger) Balance(ctx context.Context, admissionNo string) (decimal.Decimal, error) {
	doc, err := l.store.Get(ctx, student.Collection, admissionNo)
	if err != nil {
		if store.IsNotFound(err) {
			return decimal.Zero, fmt.Errorf("student %s: %w", admissionNo, apperr.ErrNotFound)
		}
		return decimal.Zero, err
	}
	var s student.Student
	if err := doc.Decode(&s); err != nil {
		return decimal.Zero, err
	}
	return s.Balance, nil
}
