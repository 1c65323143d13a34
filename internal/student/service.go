package student

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/auth"
	"github.com/Younus004/wisdom/internal/document"
	"github.com/Younus004/wisdom/internal/events"
	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/sequence"
	"github.com/Younus004/wisdom/internal/store"
	"github.com/Younus004/wisdom/internal/validation"

	"github.com/spf13/afero"
)

type Allocator interface {
	Allocate(ctx context.Context, key string) (int64, error)
	Peek(ctx context.Context, key string) (int64, error)
}

type FormRenderer interface {
	RegistrationForm(w io.Writer, reg document.Registration) error
}

// Invalidator drops cached views derived from student balances.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Deps struct {
	Repository Repository
	Sequence   Allocator
	Validator  *validation.Validator
	Renderer   FormRenderer
	Forms      *document.Archive
	Publisher  events.Publisher
	DueList    Invalidator
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Now        func() time.Time
	// AdmissionNoWidth is the zero-padded width of admission numbers.
	AdmissionNoWidth int
}

type Service struct {
	Deps
}

func RegisterValidations(v *validation.Validator) {
	v.RegisterEnum("class", Classes...)
	v.RegisterEnum("section", Sections...)
	v.RegisterEnum("gender", Genders...)
	v.RegisterEnum("blood_group", BloodGroups...)
	v.RegisterEnum("admission_payment_mode", AdmissionPaymentModes...)
}

func NewService(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.AdmissionNoWidth == 0 {
		deps.AdmissionNoWidth = 4
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

// Register allocates the admission and bill numbers and stores the new
// student. A number whose registration then fails is never reused.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Student, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	if err := s.Validator.Struct(req); err != nil {
		return nil, err
	}

	total := req.Total()
	if total.IsNegative() {
		return nil, apperr.Invalid("discount", "discount cannot exceed the sum of the fees")
	}
	if req.Paid.GreaterThan(total) {
		return nil, apperr.Invalid("paid", fmt.Sprintf("paid cannot exceed the total fee of %s", total.StringFixed(2)))
	}

	admNo, err := s.Sequence.Allocate(ctx, sequence.AdmissionNo)
	if err != nil {
		return nil, err
	}
	billNo, err := s.Sequence.Allocate(ctx, sequence.BillNo)
	if err != nil {
		return nil, err
	}

	st := &Student{
		AdmissionNo:      sequence.FormatAdmissionNo(admNo, s.AdmissionNoWidth),
		BillNo:           billNo,
		Profile:          req.Profile,
		FeeHeads:         req.FeeHeads,
		TotalFee:         total,
		Paid:             req.Paid,
		Balance:          total.Sub(req.Paid),
		PaymentMode:      req.PaymentMode,
		BalanceDueDate:   req.BalanceDueDate,
		FeeDueDate:       req.FeeDueDate,
		RegistrationDate: s.Now().UTC(),
	}
	st.Name = strings.TrimSpace(st.Name)

	if err := s.Repository.Create(ctx, st); err != nil {
		return nil, err
	}

	s.invalidateDueList(ctx)
	s.Metrics.RecordStudentRegistration(ctx, st.Class)
	events.Emit(ctx, s.Publisher, s.Logger, events.New(events.StudentRegistered, st.AdmissionNo, map[string]any{
		"admission_no": st.AdmissionNo,
		"bill_no":      st.BillNo,
		"name":         st.Name,
		"class":        st.Class,
		"section":      st.Section,
		"total_fee":    st.TotalFee,
		"balance":      st.Balance,
	}))

	s.Logger.InfoContext(ctx, "student registered", "admission_no", st.AdmissionNo, "bill_no", st.BillNo)
	return st, nil
}

// NextAdmissionNo previews the number the next registration is likely to
// receive. A concurrent registration may still take it first.
func (s *Service) NextAdmissionNo(ctx context.Context) (string, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return "", err
	}
	last, err := s.Sequence.Peek(ctx, sequence.AdmissionNo)
	if err != nil {
		return "", err
	}
	return sequence.FormatAdmissionNo(last+1, s.AdmissionNoWidth), nil
}

func (s *Service) Get(ctx context.Context, admissionNo string) (*Student, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	return s.Repository.GetByAdmissionNo(ctx, admissionNo)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Student, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}

	q := store.Query{}.Order("admission_no", false)
	if f.Class != "" {
		q = q.Where("class", store.Eq, f.Class)
	}
	if f.Section != "" {
		q = q.Where("section", store.Eq, f.Section)
	}
	switch f.Status {
	case "":
	case StatusPaid:
		q = q.Where("balance", store.Lte, 0)
	case StatusDue:
		q = q.Where("balance", store.Gt, 0)
	default:
		return nil, apperr.Invalid("status", "status must be one of Paid, Due")
	}

	students, err := s.Repository.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if f.Search == "" {
		return students, nil
	}
	return slices.DeleteFunc(students, func(st Student) bool { return !matchesSearch(st, f.Search) }), nil
}

func matchesSearch(st Student, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(st.Name), needle) ||
		strings.Contains(strings.ToLower(st.AdmissionNo), needle) ||
		strings.Contains(st.FatherMobile, search)
}

// RegistrationForm returns the stored registration form, rendering it only
// when it does not exist yet.
func (s *Service) RegistrationForm(ctx context.Context, admissionNo string) (document.Stored, error) {
	st, err := s.Get(ctx, admissionNo)
	if err != nil {
		return document.Stored{}, err
	}

	stored, err := s.Forms.Ensure(document.RegistrationFileName(st.AdmissionNo), func(w io.Writer) error {
		return s.Renderer.RegistrationForm(w, registrationOf(st))
	})
	if err != nil {
		return document.Stored{}, err
	}
	if stored.Created {
		s.Metrics.RecordDocumentRendered(ctx, document.KindRegistration)
		s.Logger.InfoContext(ctx, "registration form rendered", "admission_no", st.AdmissionNo, "path", stored.Path)
	}
	return stored, nil
}

func (s *Service) OpenForm(name string) (afero.File, error) {
	return s.Forms.Open(name)
}

func (s *Service) invalidateDueList(ctx context.Context) {
	if s.DueList == nil {
		return
	}
	if err := s.DueList.Invalidate(ctx); err != nil {
		s.Logger.WarnContext(ctx, "failed to invalidate due list cache", "error", err)
	}
}

func registrationOf(st *Student) document.Registration {
	return document.Registration{
		AdmissionNo:      st.AdmissionNo,
		BillNo:           st.BillNo,
		Name:             st.Name,
		Class:            st.Class,
		Section:          st.Section,
		DOB:              st.DOB.String(),
		Gender:           st.Gender,
		BloodGroup:       st.BloodGroup,
		FatherName:       st.FatherName,
		FatherMobile:     st.FatherMobile,
		MotherName:       st.MotherName,
		MotherMobile:     st.MotherMobile,
		Email:            st.ParentEmail,
		Address:          st.Address,
		TotalFee:         st.TotalFee,
		Paid:             st.Paid,
		Balance:          st.Balance,
		RegistrationDate: st.RegistrationDate,
		PhotoPath:        st.PhotoPath,
	}
}
