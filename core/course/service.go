package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edusource/core"
)

var ErrNotFound = errors.New("course not found")

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// FilterCourses applies AND operation on QueryFilter.Type, QueryFilter.Specialization and
		// QueryFilter.EnrolledUser. QueryFilter.Search is matched by the Service.
		FilterCourses(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		// AddEnrolledUser adds userID to the course's EnrolledUsers set. Idempotent and safe under concurrency.
		AddEnrolledUser(ctx context.Context, courseID, userID string) error
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		timeout  time.Duration
	}
)

func NewService(repo Repository, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		timeout:  conf.Database.Timeout,
	}
}

func (svc *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.timeout)
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	crs := Course{
		ID:               uuid.New().String(),
		Title:            nc.Title,
		ShortDescription: nc.ShortDescription,
		Description:      nc.Description,
		Specialization:   nc.Specialization,
		AuthorID:         nc.AuthorID,
		AuthorName:       nc.AuthorName,
		Price:            nc.Price,
		Type:             nc.Type,
		EnrolledUsers:    []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	return crs, errors.Wrap(err, "creating course")
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()
	return svc.repo.GetCourse(ctx, id)
}

// Query returns the catalog matching filter. Without an explicit ordering, searches are ranked by relevance.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	courses, err := svc.repo.FilterCourses(ctx, filter, ordering...)
	if err != nil {
		return nil, errors.Wrap(err, "filtering courses")
	}
	if filter.Search = core.CleanString(filter.Search); filter.Search != "" {
		courses = search(courses, filter.Search, len(ordering) == 0)
	}
	return courses, nil
}

// Enrolled returns the courses userID is enrolled in.
func (svc *Service) Enrolled(ctx context.Context, userID string) ([]Course, error) {
	if userID == "" {
		return []Course{}, nil
	}
	return svc.Query(ctx, QueryFilter{EnrolledUser: userID}, core.DBOrdering{Field: "created_at"})
}

// AddEnrolledUser records userID as enrolled in courseID.
func (svc *Service) AddEnrolledUser(ctx context.Context, courseID, userID string) error {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()
	return svc.repo.AddEnrolledUser(ctx, courseID, userID)
}
