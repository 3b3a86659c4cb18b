package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
)

type enrollmentRow struct {
	ID             string      `db:"id"`
	UserID         string      `db:"user_id"`
	CourseID       string      `db:"course_id"`
	CourseTitle    string      `db:"course_title"`
	EnrollmentType string      `db:"enrollment_type"`
	Status         string      `db:"status"`
	PaymentID      null.String `db:"payment_id"`
	EnrolledAt     time.Time   `db:"enrolled_at"`
}

func (row enrollmentRow) toRecord() enrollment.Record {
	return enrollment.Record{
		ID:             row.ID,
		UserID:         row.UserID,
		CourseID:       row.CourseID,
		CourseTitle:    row.CourseTitle,
		EnrollmentType: course.Type(row.EnrollmentType),
		Status:         enrollment.Status(row.Status),
		PaymentID:      row.PaymentID.String,
		EnrolledAt:     row.EnrolledAt.UTC(),
	}
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

// CreateRecord inserts rec; enrolled_at is set by the database.
func (repo *enrollmentRepository) CreateRecord(ctx context.Context, rec enrollment.Record) (enrollment.Record, error) {
	err := repo.db.QueryRowxContext(ctx, `
		INSERT INTO enrollments (id, user_id, course_id, course_title, enrollment_type, status, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING enrolled_at`,
		rec.ID, rec.UserID, rec.CourseID, rec.CourseTitle, string(rec.EnrollmentType), string(rec.Status),
		null.NewString(rec.PaymentID, rec.PaymentID != ""),
	).Scan(&rec.EnrolledAt)
	if err != nil {
		return enrollment.Record{}, errors.Wrap(err, "inserting enrollment")
	}
	rec.EnrolledAt = rec.EnrolledAt.UTC()
	return rec, nil
}

func (repo *enrollmentRepository) FilterRecords(ctx context.Context, filter enrollment.RecordFilter) ([]enrollment.Record, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conds = append(conds, fmt.Sprintf("course_id = $%d", len(args)))
	}

	q := `SELECT id, user_id, course_id, course_title, enrollment_type, status, payment_id, enrolled_at FROM enrollments`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY enrolled_at DESC, id`

	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	recs := make([]enrollment.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.toRecord())
	}
	return recs, nil
}
