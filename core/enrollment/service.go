package enrollment

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/user"
)

type (
	Repository interface {
		// CreateRecord appends rec to the audit log. The store assigns Record.EnrolledAt.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		// FilterRecords returns the records matching filter, newest first.
		FilterRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	}

	// CourseStore adds users to the enrolled set of a course.
	CourseStore interface {
		AddEnrolledUser(ctx context.Context, courseID, userID string) error
	}

	// EventPublisher publishes JSON events to subscribers (message broker).
	EventPublisher interface {
		PublishJSON(ctx context.Context, key string, v interface{}) error
	}

	Service struct {
		courses CourseStore
		repo    Repository
		mailSvc core.EmailService
		events  EventPublisher
		logger  core.Logger
	}
)

func NewService(
	courses CourseStore,
	repo Repository,
	mailSvc core.EmailService,
	events EventPublisher,
	logger core.Logger,
) *Service {
	return &Service{
		courses: courses,
		repo:    repo,
		mailSvc: mailSvc,
		events:  events,
		logger:  logger,
	}
}

// EnrollFree enrolls userID in the free course courseID: the user is added to the course's enrolled set, then
// one audit record is appended. The two writes are not atomic; a failure of either returns a StoreWriteError
// and the whole operation may be retried (the set add is idempotent, the audit record is appended again).
// Callers check authentication and the course type beforehand.
func (svc *Service) EnrollFree(ctx context.Context, userID, courseID, courseTitle string) error {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(userID, "userId"),
		vala.StringNotEmpty(courseID, "courseId"),
		vala.StringNotEmpty(courseTitle, "courseTitle"),
	).Check()
	if err != nil {
		return core.NewValidationError(err)
	}

	if err = svc.courses.AddEnrolledUser(ctx, courseID, userID); err != nil {
		return NewError(StoreWriteError, "", errors.Wrap(err, "adding enrolled user"))
	}

	rec := Record{
		ID:             uuid.New().String(),
		UserID:         userID,
		CourseID:       courseID,
		CourseTitle:    courseTitle,
		EnrollmentType: course.Free,
		Status:         StatusCompleted,
	}
	if _, err = svc.repo.CreateRecord(ctx, rec); err != nil {
		return NewError(StoreWriteError, "", errors.Wrap(err, "creating enrollment record"))
	}
	return nil
}

// Grant enrolls userID in crs on behalf of support, e.g. after a payment was captured but its verification failed.
// paymentID is noted on the audit record.
func (svc *Service) Grant(ctx context.Context, crs course.Course, userID, paymentID string) (Record, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(userID, "userId"),
		vala.StringNotEmpty(crs.ID, "courseId"),
	).Check()
	if err != nil {
		return Record{}, core.NewValidationError(err)
	}

	status := StatusCompleted
	if crs.HasEnrolled(userID) {
		status = StatusAlreadyEnrolled
	}
	if err = svc.courses.AddEnrolledUser(ctx, crs.ID, userID); err != nil {
		return Record{}, NewError(StoreWriteError, "", errors.Wrap(err, "adding enrolled user"))
	}

	rec, err := svc.repo.CreateRecord(ctx, Record{
		ID:             uuid.New().String(),
		UserID:         userID,
		CourseID:       crs.ID,
		CourseTitle:    crs.Title,
		EnrollmentType: crs.Type,
		Status:         status,
		PaymentID:      paymentID,
	})
	if err != nil {
		return Record{}, NewError(StoreWriteError, "", errors.Wrap(err, "creating enrollment record"))
	}
	return rec, nil
}

// Records returns userID's enrollment records, newest first.
func (svc *Service) Records(ctx context.Context, userID string) ([]Record, error) {
	recs, err := svc.repo.FilterRecords(ctx, RecordFilter{UserID: userID})
	return recs, errors.Wrap(err, "filtering enrollment records")
}

// Notify emails usr a confirmation and publishes an EventCompleted. Failures are only logged.
func (svc *Service) Notify(ctx context.Context, usr user.User, crs course.Course) {
	evt := Event{
		Type:           EventCompleted,
		UserID:         usr.ID,
		CourseID:       crs.ID,
		CourseTitle:    crs.Title,
		EnrollmentType: crs.Type,
		OccurredAt:     time.Now().UTC(),
	}
	if svc.events != nil {
		if err := svc.events.PublishJSON(ctx, EventCompleted, evt); err != nil {
			svc.logger.Error("publishing enrollment event", errors.Wrap(err, "publishing"), usr)
		}
	}

	if usr.Email == "" || svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Enrollment confirmed: " + crs.Title,
		TemplateName: "enrollment_confirmation",
		TemplateData: map[string]string{
			"Name":        usr.Name,
			"CourseID":    crs.ID,
			"CourseTitle": crs.Title,
		},
	})
}

// OnPaidEnrollment mirrors a verified payment: the user joins crs's enrolled set (idempotent; the payment backend
// keeps the audit record) and is notified. It is the checkout's OnEnrolled hook.
func (svc *Service) OnPaidEnrollment(ctx context.Context, sess user.Session, crs course.Course) {
	if sess.User == nil {
		return
	}
	usr := *sess.User
	if err := svc.courses.AddEnrolledUser(ctx, crs.ID, usr.ID); err != nil {
		svc.logger.Error("mirroring paid enrollment", errors.Wrap(err, "adding enrolled user"), usr)
		return
	}
	svc.Notify(ctx, usr, crs)
}
