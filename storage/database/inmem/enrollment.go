package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/edusource/core/enrollment"
)

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db.enrollment}
}

func (repo *enrollmentRepository) CreateRecord(ctx context.Context, rec enrollment.Record) (enrollment.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec.EnrolledAt = time.Now().UTC()
	repo.db.table = append(repo.db.table, rec)
	return rec, nil
}

func (repo *enrollmentRepository) FilterRecords(ctx context.Context, filter enrollment.RecordFilter) ([]enrollment.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]enrollment.Record, 0)
	for i := len(repo.db.table) - 1; i >= 0; i-- { // newest first
		rec := repo.db.table[i]
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.CourseID != "" && rec.CourseID != filter.CourseID {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
