// Package storage opens the configured storage engine.
package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/storage/database"
	inmemdb "github.com/trezcool/edusource/storage/database/inmem"
	mongorepos "github.com/trezcool/edusource/storage/database/mongo"
	sqlxrepos "github.com/trezcool/edusource/storage/database/sqlx"
)

// Engine holds the repositories of one storage engine.
type Engine struct {
	Name        string
	Courses     course.Repository
	Enrollments enrollment.Repository
	SQL         *sqlx.DB // postgres only

	close func(ctx context.Context) error
}

func (e *Engine) Close(ctx context.Context) error {
	if e.close == nil {
		return nil
	}
	return e.close(ctx)
}

// Open opens conf.Database.Engine (postgres | mongo | memory). Postgres is migrated when migrate is set.
func Open(ctx context.Context, conf *core.Config, migrate bool) (*Engine, error) {
	engine := conf.Database.Engine
	switch engine {
	case "postgres":
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err = database.Migrate(db.DB); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &Engine{
			Name:        engine,
			Courses:     sqlxrepos.NewCourseRepository(db),
			Enrollments: sqlxrepos.NewEnrollmentRepository(db),
			SQL:         db,
			close:       func(context.Context) error { return db.Close() },
		}, nil

	case "mongo":
		client, err := mongorepos.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		db := client.Database(conf.Database.Name)
		if err = mongorepos.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &Engine{
			Name:        engine,
			Courses:     mongorepos.NewCourseRepository(db),
			Enrollments: mongorepos.NewEnrollmentRepository(db),
			close:       client.Disconnect,
		}, nil

	case "memory":
		db := inmemdb.Open()
		return &Engine{
			Name:        engine,
			Courses:     inmemdb.NewCourseRepository(db),
			Enrollments: inmemdb.NewEnrollmentRepository(db),
		}, nil

	default:
		return nil, errors.Errorf("unknown database engine %q", engine)
	}
}
