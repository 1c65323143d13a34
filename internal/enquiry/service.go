// Package enquiry tracks admission enquiries and their follow-up history.
package enquiry

import (
	"context"
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
	"github.com/Younus004/wisdom/internal/validation"

	"github.com/google/uuid"
)

type Service struct {
	store     store.Store
	opts      store.TxOptions
	validator *validation.Validator
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	loc       *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithTxOptions(opts store.TxOptions) Option {
	return func(s *Service) { s.opts = opts }
}

func NewService(st store.Store, v *validation.Validator, p events.Publisher, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Service {
	if p == nil {
		p = events.Noop{}
	}
	s := &Service{
		store:     st,
		validator: v,
		publisher: p,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		loc:       time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}

	v.RegisterEnum("enquiry_source", Sources...)
	v.RegisterEnum("enquiry_status", Statuses...)
	v.RegisterEnum("lead_temp", LeadTemps...)
	return s
}

// Create stores the enquiry and logs its first follow-up, so a new enquiry
// always has a history of length one.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Enquiry, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	now := s.now()
	e := &Enquiry{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(req.Name),
		Mobile:          req.Mobile,
		Email:           req.Email,
		ClassInterested: req.ClassInterested,
		Source:          req.Source,
		Status:          req.Status,
		LeadTemp:        req.LeadTemp,
		Notes:           req.Notes,
		InquiryDate:     req.InquiryDate,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if e.Status == "" {
		e.Status = StatusNew
	}
	if e.InquiryDate.IsZero() {
		e.InquiryDate = datetime.DateOf(now.In(s.loc))
	}
	next := req.NextFollowup
	if next.IsZero() {
		next = now
	}

	if _, err := store.Create(ctx, s.store, Collection, e.ID, e); err != nil {
		return nil, err
	}

	updated, _, err := s.appendFollowup(ctx, e.ID, fmt.Sprintf("Enquiry logged (status=%s)", e.Status), next)
	if err != nil {
		s.logger.ErrorContext(ctx, "enquiry stored without initial followup", "enquiry_id", e.ID, "error", err)
		return nil, err
	}

	s.metrics.RecordEnquiryCreated(ctx, e.LeadTemp)
	events.Emit(ctx, s.publisher, s.logger, events.New(events.EnquiryCreated, e.ID, updated))
	s.logger.InfoContext(ctx, "enquiry created", "enquiry_id", e.ID, "status", e.Status, "lead_temp", e.LeadTemp)
	return updated, nil
}

// AddFollowup records a comment and moves the enquiry's next follow-up.
func (s *Service) AddFollowup(ctx context.Context, id string, req FollowupRequest) (*Followup, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	_, fu, err := s.appendFollowup(ctx, id, strings.TrimSpace(req.Comment), req.NextFollowup)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordFollowupAdded(ctx)
	events.Emit(ctx, s.publisher, s.logger, events.New(events.EnquiryFollowupAdded, id, map[string]any{
		"enquiry_id":    id,
		"seq":           fu.Seq,
		"next_followup": fu.NextFollowup,
	}))
	s.logger.InfoContext(ctx, "followup added", "enquiry_id", id, "seq", fu.Seq)
	return fu, nil
}

// appendFollowup moves the parent's next_followup and count in one
// transaction, then appends the history entry numbered by the new count.
// A failed append leaves a gap in the numbering, which is logged.
func (s *Service) appendFollowup(ctx context.Context, id, comment string, next time.Time) (*Enquiry, *Followup, error) {
	var (
		e  Enquiry
		fu Followup
	)
	_, err := store.Transact(ctx, s.store, Collection, id, s.opts, func(current store.Document) (any, error) {
		if !current.Exists() {
			return nil, fmt.Errorf("enquiry %s: %w", id, apperr.ErrNotFound)
		}
		var cur Enquiry
		if err := current.Decode(&cur); err != nil {
			return nil, err
		}
		now := s.now().UTC()
		cur.FollowupCount++
		cur.NextFollowup = next.UTC()
		cur.UpdatedAt = now
		e = cur
		fu = Followup{Seq: cur.FollowupCount, Comment: comment, Timestamp: now, NextFollowup: cur.NextFollowup}
		return cur, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if _, err := store.AppendChild(ctx, s.store, Collection, id, FollowupsCollection, fu); err != nil {
		s.logger.ErrorContext(ctx, "followup committed on enquiry but history entry not recorded",
			"enquiry_id", id, "seq", fu.Seq, "error", err)
		return nil, nil, fmt.Errorf("append followup %d of enquiry %s: %w", fu.Seq, id, err)
	}
	return &e, &fu, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Enquiry, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("enquiry %s: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	var e Enquiry
	if err := doc.Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns enquiries, most recent inquiry date first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Enquiry, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}

	q := store.Query{}.Order("inquiry_date", true)
	if f.ClassInterested != "" {
		q = q.Where("class_interested", store.Eq, f.ClassInterested)
	}
	if f.Status != "" {
		q = q.Where("status", store.Eq, f.Status)
	}

	enquiries, err := store.Collect[Enquiry](s.store.Query(ctx, Collection, q))
	if err != nil {
		return nil, err
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		enquiries = slices.DeleteFunc(enquiries, func(e Enquiry) bool {
			return !strings.Contains(strings.ToLower(e.Name), needle) && !strings.Contains(e.Mobile, f.Search)
		})
	}
	if enquiries == nil {
		enquiries = []Enquiry{}
	}
	return enquiries, nil
}

// History returns the follow-ups of an enquiry, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]Followup, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	coll := store.ChildCollection(Collection, id, FollowupsCollection)
	history, err := store.Collect[Followup](s.store.Query(ctx, coll, store.Query{}.Order("seq", false)))
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []Followup{}
	}
	return history, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Enquiry, error) {
	if err := auth.RequireFrontOffice(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	var e Enquiry
	_, err := store.Transact(ctx, s.store, Collection, id, s.opts, func(current store.Document) (any, error) {
		if !current.Exists() {
			return nil, fmt.Errorf("enquiry %s: %w", id, apperr.ErrNotFound)
		}
		var cur Enquiry
		if err := current.Decode(&cur); err != nil {
			return nil, err
		}
		if req.Status != nil {
			cur.Status = *req.Status
		}
		if req.LeadTemp != nil {
			cur.LeadTemp = *req.LeadTemp
		}
		cur.UpdatedAt = s.now().UTC()
		e = cur
		return cur, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "enquiry updated", "enquiry_id", id, "status", e.Status, "lead_temp", e.LeadTemp)
	return &e, nil
}
