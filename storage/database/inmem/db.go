package inmemdb

import (
	"sync"

	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
)

type (
	DB struct {
		course     *courseTable
		enrollment *enrollmentTable
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	enrollmentTable struct {
		sync.RWMutex
		table []enrollment.Record // append-only
	}
)

func Open() *DB {
	return &DB{
		course:     &courseTable{table: make(map[string]*course.Course)},
		enrollment: &enrollmentTable{table: make([]enrollment.Record, 0)},
	}
}

// Reset drops every row (tests).
func (db *DB) Reset() {
	db.course.Lock()
	db.course.table = make(map[string]*course.Course)
	db.course.Unlock()

	db.enrollment.Lock()
	db.enrollment.table = make([]enrollment.Record, 0)
	db.enrollment.Unlock()
}
