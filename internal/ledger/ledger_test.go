package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/datetime"
	"github.com/Younus004/wisdom/internal/ledger"
	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/store"
	"github.com/Younus004/wisdom/internal/store/memstore"
	"github.com/Younus004/wisdom/internal/student"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nextDue = datetime.Date{Year: 2026, Month: 5, Day: 10}

func seedStudent(t *testing.T, s store.Store, adm string, total int64, feeDue *datetime.Date) {
	t.Helper()
	_, err := store.Create(context.Background(), s, student.Collection, adm, student.Student{
		AdmissionNo: adm,
		Profile:     student.Profile{Name: "Asha Rao", Class: "5", Section: "A"},
		TotalFee:    decimal.NewFromInt(total),
		Paid:        decimal.Zero,
		Balance:     decimal.NewFromInt(total),
		FeeDueDate:  feeDue,
	})
	require.NoError(t, err)
}

func load(t *testing.T, s store.Store, adm string) (student.Student, int64) {
	t.Helper()
	doc, err := s.Get(context.Background(), student.Collection, adm)
	require.NoError(t, err)
	var st student.Student
	require.NoError(t, doc.Decode(&st))
	return st, doc.Version
}

func TestLedger_ApplyPayment(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := ledger.New(s, store.TxOptions{}, metrics.NewMock())
	seedStudent(t, s, "0001", 10000, nil)

	t.Run("partial payment", func(t *testing.T) {
		res, err := l.ApplyPayment(ctx, "0001", decimal.NewFromInt(4000), nextDue)
		require.NoError(t, err)
		assert.True(t, res.Paid.Equal(decimal.NewFromInt(4000)), "paid = %s", res.Paid)
		assert.True(t, res.Balance.Equal(decimal.NewFromInt(6000)), "balance = %s", res.Balance)
	})

	t.Run("overpayment leaves record unchanged", func(t *testing.T) {
		before, version := load(t, s, "0001")

		_, err := l.ApplyPayment(ctx, "0001", decimal.NewFromInt(7000), nextDue)
		require.ErrorIs(t, err, apperr.ErrOverpayment)

		after, afterVersion := load(t, s, "0001")
		assert.Equal(t, version, afterVersion)
		assert.True(t, before.Balance.Equal(after.Balance))
		assert.True(t, before.Paid.Equal(after.Paid))
	})

	t.Run("due date not introduced when absent", func(t *testing.T) {
		st, _ := load(t, s, "0001")
		assert.Nil(t, st.FeeDueDate)
	})

	t.Run("exact balance clears the dues", func(t *testing.T) {
		res, err := l.ApplyPayment(ctx, "0001", decimal.NewFromInt(6000), nextDue)
		require.NoError(t, err)
		assert.True(t, res.Balance.IsZero())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := l.ApplyPayment(ctx, "0001", decimal.Zero, nextDue)
		assert.True(t, apperr.IsValidation(err))
		_, err = l.ApplyPayment(ctx, "0001", decimal.NewFromInt(-5), nextDue)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := l.ApplyPayment(ctx, "9999", decimal.NewFromInt(1), nextDue)
		require.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = s.Get(ctx, student.Collection, "9999")
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestLedger_UpdatesExistingDueDate(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := ledger.New(s, store.TxOptions{}, nil)
	seedStudent(t, s, "0002", 5000, &datetime.Date{Year: 2026, Month: 1, Day: 15})

	res, err := l.ApplyPayment(ctx, "0002", decimal.NewFromInt(1000), nextDue)
	require.NoError(t, err)
	require.NotNil(t, res.Student.FeeDueDate)
	assert.Equal(t, nextDue, *res.Student.FeeDueDate)

	st, _ := load(t, s, "0002")
	require.NotNil(t, st.FeeDueDate)
	assert.Equal(t, nextDue, *st.FeeDueDate)
}

func TestLedger_ConcurrentPaymentsNoLostUpdate(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := ledger.New(s, store.TxOptions{}, metrics.NewMock())
	seedStudent(t, s, "0003", 10000, nil)

	amounts := []int64{2500, 3500}
	var wg sync.WaitGroup
	for _, a := range amounts {
		wg.Add(1)
		go func(a int64) {
			defer wg.Done()
			_, err := l.ApplyPayment(ctx, "0003", decimal.NewFromInt(a), nextDue)
			assert.NoError(t, err)
		}(a)
	}
	wg.Wait()

	st, _ := load(t, s, "0003")
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(4000)), "balance = %s", st.Balance)
	assert.True(t, st.Paid.Equal(decimal.NewFromInt(6000)), "paid = %s", st.Paid)
}

func TestLedger_ConcurrentPaymentsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := ledger.New(s, store.TxOptions{MaxAttempts: 100}, nil)
	seedStudent(t, s, "0004", 1000, nil)

	const payers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < payers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyPayment(ctx, "0004", decimal.NewFromInt(300), nextDue)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperr.ErrOverpayment)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	st, _ := load(t, s, "0004")
	assert.True(t, st.Balance.Equal(decimal.NewFromInt(100)), "balance = %s", st.Balance)
}
