package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/lms/internal/model"
	"github.com/classtrack/lms/internal/repo"
	"github.com/classtrack/lms/internal/testutil"
)

func TestCourseModuleUpsertByCode(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	modules := repo.NewCourseModuleRepo(conn)
	now := time.Now().Unix()

	first, err := modules.Upsert(ctx, &model.CourseModule{
		ID: "mod-a", CourseID: "course-1", Code: "MAT01", Name: "Matemática", Position: 1, Ctime: now, Mtime: now,
	})
	require.NoError(t, err)
	require.Equal(t, "mod-a", first)

	// same code, fresh id: the existing row wins and gets updated
	second, err := modules.Upsert(ctx, &model.CourseModule{
		ID: "mod-b", CourseID: "course-1", Code: "MAT01", Name: "Matemática Renomeada", Position: 2, Ctime: now, Mtime: now + 1,
	})
	require.NoError(t, err)
	require.Equal(t, "mod-a", second)

	stored, err := modules.GetByCode(ctx, "course-1", "MAT01")
	require.NoError(t, err)
	require.Equal(t, "Matemática Renomeada", stored.Name)
	require.Equal(t, 2, stored.Position)

	count, err := modules.CountByCourse(ctx, "course-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCourseModuleUpsertByNameWhenUncoded(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	modules := repo.NewCourseModuleRepo(conn)
	now := time.Now().Unix()

	first, err := modules.Upsert(ctx, &model.CourseModule{
		ID: "mod-a", CourseID: "course-1", Code: "", Name: "MÓDULO 01", Position: 1, Ctime: now, Mtime: now,
	})
	require.NoError(t, err)

	second, err := modules.Upsert(ctx, &model.CourseModule{
		ID: "mod-b", CourseID: "course-1", Code: "", Name: "MÓDULO 01", Position: 3, Ctime: now, Mtime: now + 1,
	})
	require.NoError(t, err)
	require.Equal(t, first, second)

	count, err := modules.CountByCourse(ctx, "course-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCourseModuleUpsertUncodedScopedPerCourse(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	modules := repo.NewCourseModuleRepo(conn)
	now := time.Now().Unix()

	_, err := modules.Upsert(ctx, &model.CourseModule{
		ID: "mod-a", CourseID: "course-1", Name: "MÓDULO 01", Position: 1, Ctime: now, Mtime: now,
	})
	require.NoError(t, err)
	_, err = modules.Upsert(ctx, &model.CourseModule{
		ID: "mod-b", CourseID: "course-2", Name: "MÓDULO 01", Position: 1, Ctime: now, Mtime: now,
	})
	require.NoError(t, err)

	count1, err := modules.CountByCourse(ctx, "course-1")
	require.NoError(t, err)
	require.Equal(t, 1, count1)
	count2, err := modules.CountByCourse(ctx, "course-2")
	require.NoError(t, err)
	require.Equal(t, 1, count2)
}
