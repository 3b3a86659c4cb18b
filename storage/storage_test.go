package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/tests"
)

func TestOpen(t *testing.T) {
	conf := testutil.NewConfig()
	ctx := context.Background()

	engine, err := Open(ctx, conf, true)
	require.NoError(t, err)
	assert.Equal(t, "memory", engine.Name)
	assert.Nil(t, engine.SQL)
	assert.NoError(t, engine.Close(ctx))

	conf.Database.Engine = "sqlite"
	_, err = Open(ctx, conf, true)
	assert.EqualError(t, err, `unknown database engine "sqlite"`)
}

func TestMemory_enrolledUsers(t *testing.T) {
	ctx := context.Background()
	engine, err := Open(ctx, testutil.NewConfig(), false)
	require.NoError(t, err)

	crs := testutil.CreateCourse(t, engine.Courses, "Go Programming", course.Free, "0")

	// concurrent unions of the same ids keep a set
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := []string{"u1", "u2"}[i%2]
			assert.NoError(t, engine.Courses.AddEnrolledUser(ctx, crs.ID, userID))
		}(i)
	}
	wg.Wait()

	got, err := engine.Courses.GetCourse(ctx, crs.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, got.EnrolledUsers)

	// returned courses are copies
	got.EnrolledUsers[0] = "lol"
	again, err := engine.Courses.GetCourse(ctx, crs.ID)
	require.NoError(t, err)
	assert.NotContains(t, again.EnrolledUsers, "lol")

	assert.ErrorIs(t, engine.Courses.AddEnrolledUser(ctx, "missing", "u1"), course.ErrNotFound)
	_, err = engine.Courses.GetCourse(ctx, "missing")
	assert.ErrorIs(t, err, course.ErrNotFound)
}

func TestMemory_records(t *testing.T) {
	ctx := context.Background()
	engine, err := Open(ctx, testutil.NewConfig(), false)
	require.NoError(t, err)

	for _, rec := range []enrollment.Record{
		{ID: "r1", UserID: "u1", CourseID: "c1"},
		{ID: "r2", UserID: "u2", CourseID: "c1"},
		{ID: "r3", UserID: "u1", CourseID: "c2"},
	} {
		created, err := engine.Enrollments.CreateRecord(ctx, rec)
		require.NoError(t, err)
		assert.False(t, created.EnrolledAt.IsZero())
	}

	ids := func(recs []enrollment.Record) []string {
		res := make([]string, 0, len(recs))
		for _, r := range recs {
			res = append(res, r.ID)
		}
		return res
	}

	recs, err := engine.Enrollments.FilterRecords(ctx, enrollment.RecordFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r1"}, ids(recs))

	recs, err = engine.Enrollments.FilterRecords(ctx, enrollment.RecordFilter{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r1"}, ids(recs))
}
