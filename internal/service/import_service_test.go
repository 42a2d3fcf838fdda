package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classtrack/lms/internal/drive"
	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
	"github.com/classtrack/lms/internal/repo"
	"github.com/classtrack/lms/internal/runner"
	"github.com/classtrack/lms/internal/testutil"
)

type importFixture struct {
	conn     *sql.DB
	imports  *ImportService
	progress *ProgressService
	modules  *repo.CourseModuleRepo
	subjects *repo.SubjectRepo
	lessons  *repo.LessonRepo
	tests    *repo.TestRepo
}

func newImportFixture(conn *sql.DB, client drive.Client, maxTasks int) *importFixture {
	modules := repo.NewCourseModuleRepo(conn)
	subjects := repo.NewSubjectRepo(conn)
	lessons := repo.NewLessonRepo(conn)
	tests := repo.NewTestRepo(conn)
	progressRepo := repo.NewImportProgressRepo(conn)
	jobRepo := repo.NewDriveImportJobRepo(conn)
	progress := NewProgressService(progressRepo, jobRepo)
	builder := NewTaskListService(client, modules, subjects, lessons, tests, NewAnswerKeyExtractor(nil), 100)
	imports := NewImportService(ImportServiceParams{
		Courses:  repo.NewCourseRepo(conn),
		Modules:  modules,
		Subjects: subjects,
		Lessons:  lessons,
		Tests:    tests,
		Jobs:     jobRepo,
		Locker:   repo.NewCourseLocker(conn),
		Progress: progress,
		Builder:  builder,
		Drive:    client,
		MaxTasks: maxTasks,
	})
	return &importFixture{
		conn:     conn,
		imports:  imports,
		progress: progress,
		modules:  modules,
		subjects: subjects,
		lessons:  lessons,
		tests:    tests,
	}
}

// runToCompletion drives one import through Run the way the runner would,
// feeding each partial result's resume state back in.
func (f *importFixture) runToCompletion(t *testing.T, req *runner.ImportRequest) []int {
	t.Helper()
	ctx := context.Background()
	var percentages []int
	for i := 0; ; i++ {
		require.Less(t, i, 50, "import never completed")
		result, err := f.imports.Run(ctx, req)
		require.NoError(t, err)
		p, err := f.progress.Get(ctx, req.ImportID)
		require.NoError(t, err)
		percentages = append(percentages, p.Percentage)
		if result.Status == runner.StatusCompleted {
			return percentages
		}
		require.Equal(t, runner.StatusPartial, result.Status)
		req.ResumeState = result.ResumeState
	}
}

func (f *importFixture) counts(t *testing.T, courseID string) model.ImportTotals {
	t.Helper()
	ctx := context.Background()
	moduleCount, err := f.modules.CountByCourse(ctx, courseID)
	require.NoError(t, err)
	subjectCount, err := f.subjects.CountByCourse(ctx, courseID)
	require.NoError(t, err)
	lessonCount, err := f.lessons.CountByCourse(ctx, courseID)
	require.NoError(t, err)
	testCount, err := f.tests.CountByCourse(ctx, courseID)
	require.NoError(t, err)
	return model.ImportTotals{Modules: moduleCount, Subjects: subjectCount, Lessons: lessonCount, Tests: testCount}
}

func (f *importFixture) startImport(t *testing.T, userID, courseID string) *runner.ImportRequest {
	t.Helper()
	importID := newID()
	require.NoError(t, f.progress.Create(context.Background(), importID, userID, courseID))
	return &runner.ImportRequest{
		ImportID: importID,
		UserID:   userID,
		CourseID: courseID,
		DriveURL: testDriveURL,
	}
}

func TestImportRunChunkedToCompletion(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	userID, courseID := seedCourse(t, conn)

	fixture := newImportFixture(conn, scenarioDrive(), 3)
	req := fixture.startImport(t, userID, courseID)
	percentages := fixture.runToCompletion(t, req)

	// chunk size 3 against 7 tasks forces several invocations
	require.Greater(t, len(percentages), 1)
	for i := 1; i < len(percentages); i++ {
		require.GreaterOrEqual(t, percentages[i], percentages[i-1])
	}
	require.Equal(t, 100, percentages[len(percentages)-1])

	// MAT0101 from its folder plus MAT0102 synthesized from a loose lesson
	require.Equal(t, model.ImportTotals{Modules: 2, Subjects: 2, Lessons: 3, Tests: 1}, fixture.counts(t, courseID))

	p, err := fixture.progress.GetForUser(context.Background(), userID, req.ImportID)
	require.NoError(t, err)
	require.True(t, p.Completed)
	require.Equal(t, model.PhaseCompleted, p.Phase)

	lesson, err := fixture.lessons.GetByCode(context.Background(), courseID, "MAT010101")
	require.NoError(t, err)
	require.Equal(t, "video", lesson.ContentType)

	test, err := fixture.tests.GetByCode(context.Background(), courseID, "MAT0101")
	require.NoError(t, err)
	require.False(t, test.RequiresManualAnswerKey)
	require.Equal(t, map[string]string{"1": "A", "2": "B"}, test.AnswerKey)
}

func TestImportRunIsIdempotent(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	userID, courseID := seedCourse(t, conn)

	fixture := newImportFixture(conn, scenarioDrive(), 50)
	first := fixture.startImport(t, userID, courseID)
	fixture.runToCompletion(t, first)
	before := fixture.counts(t, courseID)

	second := fixture.startImport(t, userID, courseID)
	fixture.runToCompletion(t, second)
	require.Equal(t, before, fixture.counts(t, courseID))
}

func TestImportRunHonorsCancellation(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	userID, courseID := seedCourse(t, conn)

	fixture := newImportFixture(conn, scenarioDrive(), 3)
	req := fixture.startImport(t, userID, courseID)
	require.NoError(t, fixture.progress.Cancel(context.Background(), userID, req.ImportID))

	result, err := fixture.imports.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, runner.StatusCompleted, result.Status)

	p, err := fixture.progress.GetForUser(context.Background(), userID, req.ImportID)
	require.NoError(t, err)
	require.Equal(t, model.PhaseCancelled, p.Phase)
	require.Equal(t, model.ImportTotals{}, fixture.counts(t, courseID))
}

func TestImportTriggerAndTokenPolling(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	userID, courseID := seedCourse(t, conn)

	fixture := newImportFixture(conn, scenarioDrive(), 50)
	importRunner := runner.New(fixture.imports, 8, 3)
	fixture.imports.AttachRunner(importRunner)
	importRunner.Start()
	defer importRunner.Stop()

	ctx := context.Background()
	result, err := fixture.imports.Trigger(ctx, userID, courseID, testDriveURL)
	require.NoError(t, err)
	require.NotEmpty(t, result.ImportID)
	require.NotEmpty(t, result.JobID)
	require.NotEmpty(t, result.ProgressToken)

	deadline := time.Now().Add(10 * time.Second)
	for {
		p, err := fixture.progress.GetByToken(ctx, result.ImportID, result.JobID, result.ProgressToken)
		require.NoError(t, err)
		if p.Completed {
			require.Equal(t, model.PhaseCompleted, p.Phase)
			break
		}
		require.True(t, time.Now().Before(deadline), "import did not finish in time")
		time.Sleep(50 * time.Millisecond)
	}

	_, err = fixture.progress.GetByToken(ctx, result.ImportID, result.JobID, "wrong-token")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
	_, err = fixture.progress.GetByToken(ctx, result.ImportID, "wrong-job", result.ProgressToken)
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}

func TestImportTriggerRejectsForeignCourse(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	_, courseID := seedCourse(t, conn)
	otherUser, _ := seedCourse(t, conn)

	fixture := newImportFixture(conn, scenarioDrive(), 50)
	_, err := fixture.imports.Trigger(context.Background(), otherUser, courseID, testDriveURL)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = fixture.imports.Preview(context.Background(), otherUser, courseID, testDriveURL, "")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
