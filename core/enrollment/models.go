package enrollment

import (
	"time"

	"github.com/trezcool/edusource/core/course"
)

type (
	// Status is the status of an enrollment record.
	Status string

	// EnrollmentStatus is the answer of the resolver.
	EnrollmentStatus string
)

const (
	StatusCompleted       Status = "completed"
	StatusAlreadyEnrolled Status = "already_enrolled"

	Enrolled    EnrollmentStatus = "enrolled"
	NotEnrolled EnrollmentStatus = "not_enrolled"
)

type (
	// Record is an append-only audit entry of an enrollment.
	Record struct {
		ID             string      `json:"id"`
		UserID         string      `json:"userId"`
		CourseID       string      `json:"courseId"`
		CourseTitle    string      `json:"courseTitle"`
		EnrollmentType course.Type `json:"enrollmentType"`
		Status         Status      `json:"status"`
		PaymentID      string      `json:"paymentId,omitempty"`
		EnrolledAt     time.Time   `json:"enrolledAt"` // assigned by the store on insert
	}

	RecordFilter struct {
		UserID   string
		CourseID string
	}

	// Event is published once an enrollment completed.
	Event struct {
		Type           string      `json:"type"`
		UserID         string      `json:"userId"`
		CourseID       string      `json:"courseId"`
		CourseTitle    string      `json:"courseTitle"`
		EnrollmentType course.Type `json:"enrollmentType"`
		OccurredAt     time.Time   `json:"occurredAt"`
	}
)

const EventCompleted = "enrollment.completed"
