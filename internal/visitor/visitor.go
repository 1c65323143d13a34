// Package visitor is the front gate log: who came in, why, and when they left.
package visitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/auth"
	"github.com/Younus004/wisdom/internal/datetime"
	"github.com/Younus004/wisdom/internal/events"
	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/store"
	"github.com/Younus004/wisdom/internal/student"
	"github.com/Younus004/wisdom/internal/validation"

	"github.com/google/uuid"
)

const Collection = "visitors"

const PurposeCollectChild = "Collect Child"

var Purposes = []string{"General Visit", PurposeCollectChild, "Repair", "Meet Teacher/Staff", "Meet Principal"}

var ErrAlreadyCheckedOut = fmt.Errorf("visitor already checked out: %w", apperr.ErrConflict)

type Visitor struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Mobile           string        `json:"mobile"`
	Purpose          string        `json:"purpose"`
	ChildAdmissionNo string        `json:"child_admission_no,omitempty"`
	ChildName        string        `json:"child_name,omitempty"`
	Details          string        `json:"details,omitempty"`
	VisitDate        datetime.Date `json:"visit_date"`
	TimeIn           time.Time     `json:"time_in"`
	// TimeOut is set exactly once and is never before TimeIn.
	TimeOut *time.Time `json:"time_out,omitempty"`
}

func (v *Visitor) CheckedOut() bool {
	return v.TimeOut != nil
}

type LogRequest struct {
	Name             string `json:"name" validate:"notblank"`
	Mobile           string `json:"mobile" validate:"notblank"`
	Purpose          string `json:"purpose" validate:"visit_purpose"`
	ChildAdmissionNo string `json:"child_admission_no,omitempty"`
	Details          string `json:"details,omitempty" validate:"max=1000"`
}

type ListFilter struct {
	// Date defaults to today.
	Date    datetime.Date
	Purpose string
	// Search matches name, mobile, purpose or details case-insensitively.
	Search string
}

type StudentLookup interface {
	GetByAdmissionNo(ctx context.Context, admissionNo string) (*student.Student, error)
}

type Service struct {
	store     store.Store
	students  StudentLookup
	validator *validation.Validator
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	loc       *time.Location
}

func NewService(s store.Store, students StudentLookup, v *validation.Validator, p events.Publisher, m *metrics.Metrics, logger *slog.Logger, now func() time.Time, loc *time.Location) *Service {
	if p == nil {
		p = events.Noop{}
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	v.RegisterEnum("visit_purpose", Purposes...)
	return &Service{
		store:     s,
		students:  students,
		validator: v,
		publisher: p,
		metrics:   m,
		logger:    logger,
		now:       now,
		loc:       loc,
	}
}

// Log records a visitor arriving now. The child is recorded only for
// Collect Child visits and must be a registered student.
func (s *Service) Log(ctx context.Context, req LogRequest) (*Visitor, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	now := s.now()
	v := &Visitor{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Mobile:    strings.TrimSpace(req.Mobile),
		Purpose:   req.Purpose,
		Details:   strings.TrimSpace(req.Details),
		VisitDate: datetime.DateOf(now.In(s.loc)),
		TimeIn:    now.UTC(),
	}

	if req.Purpose == PurposeCollectChild {
		adm := strings.TrimSpace(req.ChildAdmissionNo)
		if adm == "" {
			return nil, apperr.Invalid("child_admission_no", "child_admission_no is required to collect a child")
		}
		child, err := s.students.GetByAdmissionNo(ctx, adm)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Invalid("child_admission_no", fmt.Sprintf("no student with admission number %s", adm))
		}
		if err != nil {
			return nil, err
		}
		v.ChildAdmissionNo = child.AdmissionNo
		v.ChildName = child.Name
	}

	if _, err := store.Create(ctx, s.store, Collection, v.ID, v); err != nil {
		return nil, err
	}

	s.metrics.RecordVisitorLogged(ctx, v.Purpose)
	events.Emit(ctx, s.publisher, s.logger, events.New(events.VisitorLogged, v.ID, v))
	s.logger.InfoContext(ctx, "visitor logged", "visitor_id", v.ID, "purpose", v.Purpose)
	return v, nil
}

// List returns the visitors of one calendar day, latest arrival first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Visitor, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}

	day := f.Date
	if day.IsZero() {
		day = datetime.DateOf(s.now().In(s.loc))
	}
	q := store.Query{Desc: true}.Where("visit_date", store.Eq, day)
	if f.Purpose != "" {
		q = q.Where("purpose", store.Eq, f.Purpose)
	}

	visitors, err := store.Collect[Visitor](s.store.Query(ctx, Collection, q))
	if err != nil {
		return nil, err
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		visitors = slices.DeleteFunc(visitors, func(v Visitor) bool {
			return !strings.Contains(strings.ToLower(v.Name), needle) &&
				!strings.Contains(strings.ToLower(v.Mobile), needle) &&
				!strings.Contains(strings.ToLower(v.Purpose), needle) &&
				!strings.Contains(strings.ToLower(v.Details), needle)
		})
	}
	if visitors == nil {
		visitors = []Visitor{}
	}
	return visitors, nil
}

// MarkTimeOut sets the departure time once. Of concurrent attempts the first
// commit wins and the rest fail with ErrAlreadyCheckedOut.
func (s *Service) MarkTimeOut(ctx context.Context, id string) (*Visitor, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}

	var out Visitor
	_, err := store.Transact(ctx, s.store, Collection, id, store.TxOptions{}, func(current store.Document) (any, error) {
		if !current.Exists() {
			return nil, fmt.Errorf("visitor %s: %w", id, apperr.ErrNotFound)
		}
		var v Visitor
		if err := current.Decode(&v); err != nil {
			return nil, err
		}
		if v.CheckedOut() {
			return nil, fmt.Errorf("%s at %s: %w", id, v.TimeOut.Format(time.RFC3339), ErrAlreadyCheckedOut)
		}
		timeOut := s.now().UTC()
		if timeOut.Before(v.TimeIn) {
			timeOut = v.TimeIn
		}
		v.TimeOut = &timeOut
		out = v
		return v, nil
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, s.logger, events.New(events.VisitorCheckedOut, id, map[string]any{
		"visitor_id": id,
		"time_in":    out.TimeIn,
		"time_out":   out.TimeOut,
	}))
	s.logger.InfoContext(ctx, "visitor checked out", "visitor_id", id, "stay", out.TimeOut.Sub(out.TimeIn).String())
	return &out, nil
}
