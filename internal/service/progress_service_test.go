package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
	"github.com/classtrack/lms/internal/repo"
	"github.com/classtrack/lms/internal/testutil"
)

func TestProgressLifecycle(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	svc := NewProgressService(repo.NewImportProgressRepo(conn), repo.NewDriveImportJobRepo(conn))

	userID, courseID := seedCourse(t, conn)
	importID := newID()
	require.NoError(t, svc.Create(ctx, importID, userID, courseID))

	require.NoError(t, svc.SetTotals(ctx, importID, model.ImportTotals{Modules: 2, Subjects: 3, Lessons: 5}))
	require.NoError(t, svc.SetPhase(ctx, importID, model.PhaseWriting, "materializing curriculum"))

	pct, err := svc.Advance(ctx, importID, model.ImportTotals{Modules: 2, Subjects: 3},
		model.ImportTotals{Modules: 2, Subjects: 3, Lessons: 5}, "MAT0101", 0)
	require.NoError(t, err)
	require.Equal(t, 50, pct)

	require.NoError(t, svc.AppendErrors(ctx, importID, []string{"lesson \"broken\": boom"}))
	require.NoError(t, svc.AppendErrors(ctx, importID, []string{"another one"}))

	p, err := svc.GetForUser(ctx, userID, importID)
	require.NoError(t, err)
	require.Equal(t, model.PhaseWriting, p.Phase)
	require.Equal(t, 50, p.Percentage)
	require.Equal(t, []string{"lesson \"broken\": boom", "another one"}, p.Errors)
	require.Equal(t, "MAT0101", p.CurrentItem)
}

func TestProgressPercentageNeverDecreases(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	svc := NewProgressService(repo.NewImportProgressRepo(conn), repo.NewDriveImportJobRepo(conn))

	userID, courseID := seedCourse(t, conn)
	importID := newID()
	require.NoError(t, svc.Create(ctx, importID, userID, courseID))

	// a later listing pass grew the totals; the floor holds the line
	pct, err := svc.Advance(ctx, importID, model.ImportTotals{Lessons: 1},
		model.ImportTotals{Lessons: 10}, "item", 60)
	require.NoError(t, err)
	require.Equal(t, 60, pct)
}

func TestProgressCompletionIsTerminal(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	svc := NewProgressService(repo.NewImportProgressRepo(conn), repo.NewDriveImportJobRepo(conn))

	userID, courseID := seedCourse(t, conn)
	importID := newID()
	require.NoError(t, svc.Create(ctx, importID, userID, courseID))
	require.NoError(t, svc.Complete(ctx, importID))

	err := svc.SetPhase(ctx, importID, model.PhaseWriting, "should not happen")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// completed rows keep serving reads
	p, err := svc.GetForUser(ctx, userID, importID)
	require.NoError(t, err)
	require.True(t, p.Completed)
	require.Equal(t, 100, p.Percentage)
}

func TestProgressCancelScopedToOwner(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	svc := NewProgressService(repo.NewImportProgressRepo(conn), repo.NewDriveImportJobRepo(conn))

	userID, courseID := seedCourse(t, conn)
	importID := newID()
	require.NoError(t, svc.Create(ctx, importID, userID, courseID))

	require.ErrorIs(t, svc.Cancel(ctx, "somebody-else", importID), appErr.ErrNotFound)
	require.NoError(t, svc.Cancel(ctx, userID, importID))

	p, err := svc.GetForUser(ctx, userID, importID)
	require.NoError(t, err)
	require.True(t, p.Cancelled)
}

func TestProgressListNewestFirst(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	svc := NewProgressService(repo.NewImportProgressRepo(conn), repo.NewDriveImportJobRepo(conn))

	userID, courseID := seedCourse(t, conn)
	first := newID()
	second := newID()
	require.NoError(t, svc.Create(ctx, first, userID, courseID))
	require.NoError(t, svc.Create(ctx, second, userID, courseID))
	require.NoError(t, svc.Complete(ctx, second))

	items, err := svc.List(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
}
