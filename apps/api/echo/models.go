package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/core/user"
)

type (
	CourseQuery struct {
		Search         string `query:"search"`
		Type           string `query:"type"`
		Specialization string `query:"specialization"`
	}

	CourseResponse struct {
		course.Course
		EnrolledCount    int                         `json:"enrolledCount"`
		EnrollmentStatus enrollment.EnrollmentStatus `json:"enrollmentStatus"`
	}

	GatewayFailureRequest struct {
		Description string `json:"description"`
	}

	GrantRequest struct {
		UserID    string `json:"userId" validate:"required,notblank"`
		PaymentID string `json:"paymentId"`
	}
)

func (q CourseQuery) Filter() course.QueryFilter {
	return course.QueryFilter{
		Search:         core.CleanString(q.Search),
		Type:           course.Type(core.CleanString(q.Type)),
		Specialization: core.CleanString(q.Specialization),
	}
}

// NewCourseResponse resolves usr's enrollment status in crs; usr is nil for anonymous callers.
func NewCourseResponse(crs course.Course, usr *user.User) CourseResponse {
	return CourseResponse{
		Course:           crs,
		EnrolledCount:    crs.EnrolledCount(),
		EnrollmentStatus: enrollment.Resolve(crs, usr),
	}
}

func newCourseResponses(courses []course.Course, usr *user.User) []CourseResponse {
	res := make([]CourseResponse, 0, len(courses))
	for _, crs := range courses {
		res = append(res, NewCourseResponse(crs, usr))
	}
	return res
}

func (gr *GrantRequest) Validate(validate *validator.Validate) error {
	gr.UserID = core.CleanString(gr.UserID)
	gr.PaymentID = core.CleanString(gr.PaymentID)
	return validate.Struct(gr)
}
