// Package fees collects fee payments against student balances, keeps the
// per-student receipt history and serves the fee due list.
package fees

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/auth"
	"github.com/Younus004/wisdom/internal/datetime"
	"github.com/Younus004/wisdom/internal/document"
	"github.com/Younus004/wisdom/internal/events"
	"github.com/Younus004/wisdom/internal/ledger"
	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/sequence"
	"github.com/Younus004/wisdom/internal/store"
	"github.com/Younus004/wisdom/internal/student"
	"github.com/Younus004/wisdom/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

type Allocator interface {
	Allocate(ctx context.Context, key string) (int64, error)
}

type ReceiptRenderer interface {
	FeeReceipt(w io.Writer, rc document.Receipt) error
}

type Deps struct {
	Store     store.Store
	Students  student.Repository
	Ledger    *ledger.Ledger
	Sequence  Allocator
	Validator *validation.Validator
	Renderer  ReceiptRenderer
	Receipts  *document.Archive
	DueCache  *DueListCache
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
	// Location decides which calendar day counts as today.
	Location *time.Location
}

type Service struct {
	Deps
}

func RegisterValidations(v *validation.Validator) {
	v.RegisterEnum("fee_payment_mode", PaymentModes...)
}

func NewService(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.DueCache == nil {
		deps.DueCache = NewDueListCache(nil, 0)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	RegisterValidations(deps.Validator)
	return &Service{Deps: deps}
}

// ProcessPayment applies a payment and records its receipt. The receipt is
// appended only after the balance update has committed. A receipt whose
// document failed to render is still recorded, with an empty document path.
func (s *Service) ProcessPayment(ctx context.Context, admissionNo string, req PaymentRequest) (*Receipt, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	if err := s.Validator.Struct(req); err != nil {
		s.Metrics.RecordPaymentRejected(ctx, "validation")
		return nil, err
	}
	if req.NextDue.Before(datetime.DateOf(s.Now().In(s.Location))) {
		s.Metrics.RecordPaymentRejected(ctx, "validation")
		return nil, apperr.Invalid("next_due", "next_due cannot be in the past")
	}

	// Reject obvious overpayments before a receipt number is spent.
	balance, err := s.Ledger.Balance(ctx, admissionNo)
	if err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(balance) {
		s.Metrics.RecordPaymentRejected(ctx, "overpayment")
		return nil, fmt.Errorf("amount %s, balance %s: %w", req.Amount.StringFixed(2), balance.StringFixed(2), apperr.ErrOverpayment)
	}

	receiptNo, err := s.Sequence.Allocate(ctx, sequence.ReceiptNo)
	if err != nil {
		return nil, err
	}

	res, err := s.Ledger.ApplyPayment(ctx, admissionNo, req.Amount, req.NextDue)
	if err != nil {
		if errors.Is(err, apperr.ErrOverpayment) {
			s.Metrics.RecordPaymentRejected(ctx, "overpayment")
		}
		s.Logger.WarnContext(ctx, "payment failed after receipt number allocation",
			"admission_no", admissionNo, "receipt_no", receiptNo, "error", err)
		return nil, err
	}

	rc := Receipt{
		ReceiptNo:   receiptNo,
		AdmissionNo: admissionNo,
		Amount:      req.Amount,
		Mode:        req.Mode,
		Timestamp:   s.Now().UTC(),
		NextDue:     req.NextDue,
		Remarks:     req.Remarks,
		Balance:     res.Balance,
		FeeDueDate:  res.Student.FeeDueDate,
	}

	stored, err := s.render(ctx, &res.Student, rc)
	if err != nil {
		s.Logger.ErrorContext(ctx, "failed to render fee receipt",
			"admission_no", admissionNo, "receipt_no", receiptNo, "error", err)
	} else {
		rc.DocumentPath = stored.Path
	}

	if _, err := store.AppendChild(ctx, s.Store, student.Collection, admissionNo, ReceiptsCollection, rc); err != nil {
		s.Logger.ErrorContext(ctx, "payment committed but receipt not recorded",
			"admission_no", admissionNo, "receipt_no", receiptNo, "error", err)
		return nil, fmt.Errorf("record receipt %d: %w", receiptNo, err)
	}

	if err := s.DueCache.Invalidate(ctx); err != nil {
		s.Logger.WarnContext(ctx, "failed to invalidate due list cache", "error", err)
	}
	s.Metrics.RecordPayment(ctx, rc.Mode)
	events.Emit(ctx, s.Publisher, s.Logger, events.New(events.PaymentRecorded, admissionNo, map[string]any{
		"admission_no": admissionNo,
		"receipt_no":   rc.ReceiptNo,
		"amount":       rc.Amount,
		"mode":         rc.Mode,
		"paid":         res.Paid,
		"balance":      res.Balance,
	}))

	s.Logger.InfoContext(ctx, "payment recorded",
		"admission_no", admissionNo, "receipt_no", receiptNo, "amount", rc.Amount.StringFixed(2), "balance", res.Balance.StringFixed(2))
	return &rc, nil
}

func (s *Service) render(ctx context.Context, st *student.Student, rc Receipt) (document.Stored, error) {
	stored, err := s.Deps.Receipts.Ensure(document.ReceiptFileName(rc.ReceiptNo), func(w io.Writer) error {
		return s.Renderer.FeeReceipt(w, receiptDocument(st, rc))
	})
	if err != nil {
		return document.Stored{}, err
	}
	if stored.Created {
		s.Metrics.RecordDocumentRendered(ctx, document.KindReceipt)
	}
	return stored, nil
}

// Receipts lists a student's receipts, newest first.
func (s *Service) Receipts(ctx context.Context, admissionNo string) ([]Receipt, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	if _, err := s.Students.GetByAdmissionNo(ctx, admissionNo); err != nil {
		return nil, err
	}
	coll := store.ChildCollection(student.Collection, admissionNo, ReceiptsCollection)
	receipts, err := store.Collect[Receipt](s.Store.Query(ctx, coll, store.Query{}.Order("receipt_no", true)))
	if err != nil {
		return nil, err
	}
	if receipts == nil {
		receipts = []Receipt{}
	}
	return receipts, nil
}

func (s *Service) receipt(ctx context.Context, admissionNo string, receiptNo int64) (Receipt, error) {
	coll := store.ChildCollection(student.Collection, admissionNo, ReceiptsCollection)
	found, err := store.Collect[Receipt](s.Store.Query(ctx, coll, store.Query{}.Where("receipt_no", store.Eq, receiptNo).Take(1)))
	if err != nil {
		return Receipt{}, err
	}
	if len(found) == 0 {
		return Receipt{}, fmt.Errorf("receipt %d of student %s: %w", receiptNo, admissionNo, apperr.ErrNotFound)
	}
	return found[0], nil
}

// ReceiptDocument returns the stored receipt file, rendering it again when
// it is missing.
func (s *Service) ReceiptDocument(ctx context.Context, admissionNo string, receiptNo int64) (document.Stored, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return document.Stored{}, err
	}
	st, err := s.Students.GetByAdmissionNo(ctx, admissionNo)
	if err != nil {
		return document.Stored{}, err
	}
	rc, err := s.receipt(ctx, admissionNo, receiptNo)
	if err != nil {
		return document.Stored{}, err
	}

	stored, err := s.render(ctx, st, rc)
	if err != nil {
		return document.Stored{}, err
	}
	if stored.Created {
		s.Logger.InfoContext(ctx, "fee receipt regenerated", "admission_no", admissionNo, "receipt_no", receiptNo)
	}
	return stored, nil
}

func (s *Service) OpenReceipt(name string) (afero.File, error) {
	return s.Deps.Receipts.Open(name)
}

// DueList returns every student with an outstanding balance, ordered by
// admission number.
func (s *Service) DueList(ctx context.Context) ([]DueEntry, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}

	entries, ok, err := s.DueCache.get(ctx)
	if err != nil {
		s.Logger.WarnContext(ctx, "failed to read due list cache", "error", err)
	}
	if ok {
		return entries, nil
	}

	gen := s.DueCache.generation()
	students, err := s.Students.List(ctx, store.Query{}.Where("balance", store.Gt, 0).Order("admission_no", false))
	if err != nil {
		return nil, err
	}
	entries = make([]DueEntry, 0, len(students))
	for _, st := range students {
		entries = append(entries, DueEntry{
			Name:         st.Name,
			AdmissionNo:  st.AdmissionNo,
			Class:        st.Class,
			Section:      st.Section,
			FeeDueDate:   st.FeeDueDate,
			Balance:      st.Balance,
			FatherMobile: st.FatherMobile,
		})
	}

	if err := s.DueCache.set(ctx, gen, entries); err != nil {
		s.Logger.WarnContext(ctx, "failed to write due list cache", "error", err)
	}
	return entries, nil
}

var dueListHeader = []string{"name", "admission_no", "class", "section", "fee_due_date", "balance", "father_mobile"}

// WriteDueListCSV writes the due list as CSV with a header row.
func (s *Service) WriteDueListCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.DueList(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(dueListHeader); err != nil {
		return err
	}
	for _, e := range entries {
		due := ""
		if e.FeeDueDate != nil {
			due = e.FeeDueDate.String()
		}
		if err := cw.Write([]string{e.Name, e.AdmissionNo, e.Class, e.Section, due, e.Balance.StringFixed(2), e.FatherMobile}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func receiptDocument(st *student.Student, rc Receipt) document.Receipt {
	due := ""
	if rc.FeeDueDate != nil {
		due = rc.FeeDueDate.String()
	}
	return document.Receipt{
		ReceiptNo:   rc.ReceiptNo,
		StudentName: st.Name,
		AdmissionNo: st.AdmissionNo,
		Class:       st.Class,
		Section:     st.Section,
		Amount:      rc.Amount,
		Mode:        rc.Mode,
		NewBalance:  rc.Balance,
		FeeDueDate:  due,
		NextDue:     rc.NextDue,
		Remarks:     rc.Remarks,
		PaidAt:      rc.Timestamp,
	}
}

// Outstanding sums the balances on the due list.
func Outstanding(entries []DueEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Balance)
	}
	return total
}
