package student

import (
	"context"
	"errors"
	"fmt"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/store"
)

const Collection = "students"

type Repository interface {
	Create(ctx context.Context, student *Student) error
	GetByAdmissionNo(ctx context.Context, admissionNo string) (*Student, error)
	List(ctx context.Context, q store.Query) ([]Student, error)
}

type repository struct {
	store store.Store
}

func NewRepository(s store.Store) Repository {
	return &repository{store: s}
}

var ErrAdmissionNoTaken = fmt.Errorf("admission number already registered: %w", apperr.ErrConflict)

func (r *repository) Create(ctx context.Context, student *Student) error {
	_, err := store.Create(ctx, r.store, Collection, student.AdmissionNo, student)
	if errors.Is(err, store.ErrVersionMismatch) {
		return fmt.Errorf("%s: %w", student.AdmissionNo, ErrAdmissionNoTaken)
	}
	return err
}

func (r *repository) GetByAdmissionNo(ctx context.Context, admissionNo string) (*Student, error) {
	doc, err := r.store.Get(ctx, Collection, admissionNo)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("student %s: %w", admissionNo, apperr.ErrNotFound)
		}
		return nil, err
	}
	var s Student
	if err := doc.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) List(ctx context.Context, q store.Query) ([]Student, error) {
	return store.Collect[Student](r.store.Query(ctx, Collection, q))
}
