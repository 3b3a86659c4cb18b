package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func copyCourse(crs course.Course) course.Course {
	crs.EnrolledUsers = append(make([]string, 0, len(crs.EnrolledUsers)), crs.EnrolledUsers...)
	return crs
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs = copyCourse(crs)
	repo.db.table[crs.ID] = &crs
	return copyCourse(crs), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.table[id]; ok {
		return copyCourse(*crs), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.table))
	for _, crs := range repo.db.table {
		if filter.Type != "" && crs.Type != filter.Type {
			continue
		}
		if filter.Specialization != "" && !strings.EqualFold(crs.Specialization, filter.Specialization) {
			continue
		}
		if filter.EnrolledUser != "" && !crs.HasEnrolled(filter.EnrolledUser) {
			continue
		}
		courses = append(courses, copyCourse(*crs))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(courses, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareCourses(courses[i], courses[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return courses[i].ID < courses[j].ID
	})
	return courses, nil
}

func compareCourses(a, b course.Course, field string) int {
	switch field {
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "price":
		return a.Price.Cmp(b.Price)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}

func (repo *courseRepository) AddEnrolledUser(ctx context.Context, courseID, userID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.table[courseID]
	if !ok {
		return course.ErrNotFound
	}
	if !crs.HasEnrolled(userID) {
		crs.EnrolledUsers = append(crs.EnrolledUsers, userID)
		crs.UpdatedAt = time.Now().UTC()
	}
	return nil
}
