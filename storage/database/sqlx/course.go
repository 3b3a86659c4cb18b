package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
)

const courseColumns = `id, title, short_description, description, specialization, author_id, author_name,
	price, type, enrolled_users, created_at, updated_at`

// orderable columns
var courseOrderings = map[string]string{
	"title":      "lower(title)",
	"price":      "price",
	"created_at": "created_at",
}

type courseRow struct {
	ID               string          `db:"id"`
	Title            string          `db:"title"`
	ShortDescription string          `db:"short_description"`
	Description      string          `db:"description"`
	Specialization   string          `db:"specialization"`
	AuthorID         string          `db:"author_id"`
	AuthorName       string          `db:"author_name"`
	Price            decimal.Decimal `db:"price"`
	Type             string          `db:"type"`
	EnrolledUsers    pq.StringArray  `db:"enrolled_users"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func newCourseRow(crs course.Course) courseRow {
	enrolled := pq.StringArray(crs.EnrolledUsers)
	if enrolled == nil {
		enrolled = pq.StringArray{}
	}
	return courseRow{
		ID:               crs.ID,
		Title:            crs.Title,
		ShortDescription: crs.ShortDescription,
		Description:      crs.Description,
		Specialization:   crs.Specialization,
		AuthorID:         crs.AuthorID,
		AuthorName:       crs.AuthorName,
		Price:            crs.Price,
		Type:             string(crs.Type),
		EnrolledUsers:    enrolled,
		CreatedAt:        crs.CreatedAt,
		UpdatedAt:        crs.UpdatedAt,
	}
}

func (row courseRow) toCourse() course.Course {
	enrolled := []string(row.EnrolledUsers)
	if enrolled == nil {
		enrolled = []string{}
	}
	return course.Course{
		ID:               row.ID,
		Title:            row.Title,
		ShortDescription: row.ShortDescription,
		Description:      row.Description,
		Specialization:   row.Specialization,
		AuthorID:         row.AuthorID,
		AuthorName:       row.AuthorName,
		Price:            row.Price,
		Type:             course.Type(row.Type),
		EnrolledUsers:    enrolled,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `INSERT INTO courses (` + courseColumns + `)
		VALUES (:id, :title, :short_description, :description, :specialization, :author_id, :author_name,
			:price, :type, :enrolled_users, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newCourseRow(crs)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "selecting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Specialization != "" {
		args = append(args, filter.Specialization)
		conds = append(conds, fmt.Sprintf("lower(specialization) = lower($%d)", len(args)))
	}
	if filter.EnrolledUser != "" {
		args = append(args, filter.EnrolledUser)
		conds = append(conds, fmt.Sprintf("$%d = ANY(enrolled_users)", len(args)))
	}

	q := `SELECT ` + courseColumns + ` FROM courses`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY ` + orderBy(ordering)

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func orderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		col, ok := courseOrderings[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(clauses) == 0 {
		clauses = append(clauses, "created_at DESC")
	}
	return strings.Join(append(clauses, "id ASC"), ", ")
}

// AddEnrolledUser appends userID unless already present. Concurrent appends of the same user are serialized by the
// row lock and the re-evaluated WHERE clause.
func (repo *courseRepository) AddEnrolledUser(ctx context.Context, courseID, userID string) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE courses SET enrolled_users = array_append(enrolled_users, $2), updated_at = now()
		WHERE id = $1 AND NOT ($2 = ANY(enrolled_users))`,
		courseID, userID,
	)
	if err != nil {
		return errors.Wrap(err, "appending enrolled user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting updated courses")
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, courseID); err != nil {
		return errors.Wrap(err, "checking course")
	}
	if !exists {
		return course.ErrNotFound
	}
	return nil
}
