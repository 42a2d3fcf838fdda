package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/classtrack/lms/internal/drive"
	"github.com/classtrack/lms/internal/filestore"
	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
	"github.com/classtrack/lms/internal/repo"
	"github.com/classtrack/lms/internal/runner"
)

// ImportService orchestrates one import end to end: it mints the import and
// its polling token on trigger, then executes the work in bounded chunks on
// the runner. Every chunk re-checks cancellation, re-acquires the course
// lock, and leaves the database in a state a rerun converges on.
type ImportService struct {
	courses  *repo.CourseRepo
	modules  *repo.CourseModuleRepo
	subjects *repo.SubjectRepo
	lessons  *repo.LessonRepo
	tests    *repo.TestRepo
	jobs     *repo.DriveImportJobRepo
	locker   *repo.CourseLocker
	progress *ProgressService
	builder  *TaskListService
	drive    drive.Client
	store    filestore.Store
	mirror   bool
	maxTasks int
	runner   *runner.Runner
}

type ImportServiceParams struct {
	Courses  *repo.CourseRepo
	Modules  *repo.CourseModuleRepo
	Subjects *repo.SubjectRepo
	Lessons  *repo.LessonRepo
	Tests    *repo.TestRepo
	Jobs     *repo.DriveImportJobRepo
	Locker   *repo.CourseLocker
	Progress *ProgressService
	Builder  *TaskListService
	Drive    drive.Client
	Store    filestore.Store
	Mirror   bool
	MaxTasks int
}

func NewImportService(params ImportServiceParams) *ImportService {
	maxTasks := params.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 50
	}
	return &ImportService{
		courses:  params.Courses,
		modules:  params.Modules,
		subjects: params.Subjects,
		lessons:  params.Lessons,
		tests:    params.Tests,
		jobs:     params.Jobs,
		locker:   params.Locker,
		progress: params.Progress,
		builder:  params.Builder,
		drive:    params.Drive,
		store:    params.Store,
		mirror:   params.Mirror && params.Store != nil,
		maxTasks: maxTasks,
	}
}

// AttachRunner closes the construction cycle: the runner invokes the service,
// the service enqueues onto the runner.
func (s *ImportService) AttachRunner(r *runner.Runner) {
	s.runner = r
}

type TriggerResult struct {
	ImportID      string `json:"import_id"`
	JobID         string `json:"job_id"`
	ProgressToken string `json:"progress_token"`
}

// Trigger validates the source, creates the progress row and the job record
// carrying the polling token, and enqueues the first chunk.
func (s *ImportService) Trigger(ctx context.Context, userID, courseID, driveURL string) (*TriggerResult, error) {
	if _, err := drive.ResolveFolderURL(driveURL); err != nil {
		return nil, err
	}
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.OwnerID != userID {
		return nil, appErr.ErrNotFound
	}
	importID := newID()
	jobID := newID()
	token := newToken()
	if err := s.progress.Create(ctx, importID, userID, courseID); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	job := &model.DriveImportJob{
		ID:     jobID,
		UserID: userID,
		Metadata: model.JobMetadata{
			ImportID:      importID,
			ProgressToken: token,
			CourseID:      courseID,
			DriveURL:      driveURL,
		},
		Ctime: now,
		Mtime: now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.runner.Enqueue(&runner.ImportRequest{
		ImportID: importID,
		JobID:    jobID,
		UserID:   userID,
		CourseID: courseID,
		DriveURL: driveURL,
	}); err != nil {
		_ = s.progress.Fail(ctx, importID, "could not queue import")
		return nil, err
	}
	logutil.GetLogger(ctx).Info("import triggered",
		zap.String("import_id", importID),
		zap.String("course_id", courseID))
	return &TriggerResult{ImportID: importID, JobID: jobID, ProgressToken: token}, nil
}

// Preview runs one listing pass without writing anything, so a client can
// inspect what an import would do. The returned cursor resumes a large tree.
func (s *ImportService) Preview(ctx context.Context, userID, courseID, driveURL, cursor string) (*BuildResult, error) {
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.OwnerID != userID {
		return nil, appErr.ErrNotFound
	}
	return s.builder.Build(ctx, &BuildInput{DriveURL: driveURL, CourseID: courseID, Cursor: cursor})
}

// resumeState is the continuation carried between chunks of one import:
// the listing cursor while discovery is unfinished, then the not-yet-written
// remainder of the task list.
type resumeState struct {
	Cursor string              `json:"cursor,omitempty"`
	Tasks  []*model.ImportTask `json:"tasks,omitempty"`
	Listed bool                `json:"listed"`
}

func encodeResumeState(state *resumeState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeResumeState(encoded string) (*resumeState, error) {
	if encoded == "" {
		return &resumeState{}, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, appErr.ErrInvalid
	}
	var state resumeState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, appErr.ErrInvalid
	}
	return &state, nil
}

// Run executes one bounded chunk. Listing chunks extend the task list until
// the tree is fully discovered; writing chunks then drain the list at most
// maxTasks per invocation. Anything left over comes back as a partial result.
func (s *ImportService) Run(ctx context.Context, req *runner.ImportRequest) (*runner.ImportResult, error) {
	p, err := s.progress.Get(ctx, req.ImportID)
	if err != nil {
		return nil, err
	}
	if p.Completed {
		return &runner.ImportResult{Status: runner.StatusCompleted}, nil
	}
	if p.Cancelled {
		if err := s.progress.MarkCancelled(ctx, req.ImportID); err != nil && !appErr.IsNotFound(err) {
			return nil, err
		}
		return &runner.ImportResult{Status: runner.StatusCompleted}, nil
	}
	release, ok, err := s.locker.Acquire(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.ErrCourseLocked
	}
	defer release()

	state, err := decodeResumeState(req.ResumeState)
	if err != nil {
		return nil, err
	}
	totals := model.ImportTotals{Modules: p.TotalModules, Subjects: p.TotalSubjects, Lessons: p.TotalLessons, Tests: p.TotalTests}
	processed := model.ImportTotals{Modules: p.ProcessedModules, Subjects: p.ProcessedSubjects, Lessons: p.ProcessedLessons, Tests: p.ProcessedTests}

	if !state.Listed {
		if err := s.progress.SetPhase(ctx, req.ImportID, model.PhaseListing, "listing source folders"); err != nil {
			return nil, err
		}
		build, err := s.builder.Build(ctx, &BuildInput{DriveURL: req.DriveURL, CourseID: req.CourseID, Cursor: state.Cursor})
		if err != nil {
			return nil, err
		}
		state.Tasks = append(state.Tasks, build.Tasks...)
		state.Cursor = build.NextCursor
		state.Listed = build.NextCursor == ""
		totals = maxTotals(totals, build.Totals)
		if err := s.progress.SetTotals(ctx, req.ImportID, totals); err != nil {
			return nil, err
		}
		if err := s.progress.AppendErrors(ctx, req.ImportID, build.Summary.Warnings); err != nil {
			return nil, err
		}
		if !state.Listed {
			return s.partial(state)
		}
	}

	if err := s.progress.SetPhase(ctx, req.ImportID, model.PhaseWriting, "materializing curriculum"); err != nil {
		return nil, err
	}
	floor := p.Percentage
	budget := s.maxTasks
	for len(state.Tasks) > 0 && budget > 0 {
		task := state.Tasks[0]
		state.Tasks = state.Tasks[1:]
		budget--
		if err := s.writeTask(ctx, req.ImportID, req.CourseID, task); err != nil {
			// one bad item never sinks the import
			msg := fmt.Sprintf("%s %q: %v", task.Type, taskName(task), err)
			if err := s.progress.AppendErrors(ctx, req.ImportID, []string{msg}); err != nil {
				return nil, err
			}
		}
		bumpProcessed(&processed, task.Type)
		floor, err = s.progress.Advance(ctx, req.ImportID, processed, totals, taskName(task), floor)
		if err != nil {
			return nil, err
		}
	}
	if len(state.Tasks) > 0 {
		return s.partial(state)
	}
	if err := s.progress.Complete(ctx, req.ImportID); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("import completed",
		zap.String("import_id", req.ImportID),
		zap.String("course_id", req.CourseID))
	return &runner.ImportResult{Status: runner.StatusCompleted}, nil
}

// Fail is invoked by the runner after the final retry of a chunk.
func (s *ImportService) Fail(ctx context.Context, req *runner.ImportRequest, cause error) {
	if err := s.progress.Fail(ctx, req.ImportID, cause.Error()); err != nil {
		logutil.GetLogger(ctx).Error("could not mark import failed",
			zap.String("import_id", req.ImportID), zap.Error(err))
	}
}

func (s *ImportService) partial(state *resumeState) (*runner.ImportResult, error) {
	encoded, err := encodeResumeState(state)
	if err != nil {
		return nil, err
	}
	return &runner.ImportResult{Status: runner.StatusPartial, ResumeState: encoded}, nil
}

func (s *ImportService) writeTask(ctx context.Context, importID, courseID string, task *model.ImportTask) error {
	switch task.Type {
	case model.TaskTypeModule:
		_, err := s.writeModule(ctx, courseID, task.Module)
		return err
	case model.TaskTypeSubject:
		_, err := s.writeSubject(ctx, courseID, task.Module, task.Subject)
		return err
	case model.TaskTypeLesson:
		return s.writeLesson(ctx, importID, courseID, task)
	case model.TaskTypeTest:
		return s.writeTest(ctx, courseID, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

func (s *ImportService) writeModule(ctx context.Context, courseID string, ref *model.EntityRef) (string, error) {
	now := time.Now().Unix()
	module := &model.CourseModule{
		ID:       newID(),
		CourseID: courseID,
		Code:     ref.Code,
		Name:     ref.Name,
		Position: ref.Order,
		Ctime:    now,
		Mtime:    now,
	}
	if ref.ExistingID != "" {
		module.ID = ref.ExistingID
	}
	id, err := s.modules.Upsert(ctx, module)
	if err != nil {
		return "", err
	}
	ref.ExistingID = id
	return id, nil
}

// resolveModuleID finds the module a child task belongs to. The module task
// always ran earlier, so a miss here is a real error.
func (s *ImportService) resolveModuleID(ctx context.Context, courseID string, ref *model.EntityRef) (string, error) {
	if ref.ExistingID != "" {
		return ref.ExistingID, nil
	}
	var module *model.CourseModule
	var err error
	if ref.Code != "" {
		module, err = s.modules.GetByCode(ctx, courseID, ref.Code)
	} else {
		module, err = s.modules.GetByName(ctx, courseID, ref.Name)
	}
	if err != nil {
		return "", fmt.Errorf("module %q not materialized: %w", ref.Name, err)
	}
	ref.ExistingID = module.ID
	return module.ID, nil
}

func (s *ImportService) writeSubject(ctx context.Context, courseID string, module, ref *model.EntityRef) (string, error) {
	moduleID, err := s.resolveModuleID(ctx, courseID, module)
	if err != nil {
		return "", err
	}
	now := time.Now().Unix()
	subject := &model.Subject{
		ID:       newID(),
		CourseID: courseID,
		ModuleID: moduleID,
		Code:     ref.Code,
		Name:     ref.Name,
		Position: ref.Order,
		Ctime:    now,
		Mtime:    now,
	}
	if ref.ExistingID != "" {
		subject.ID = ref.ExistingID
	}
	id, err := s.subjects.Upsert(ctx, subject)
	if err != nil {
		return "", err
	}
	ref.ExistingID = id
	return id, nil
}

// resolveSubjectID finds the subject for a lesson or test. A subject that
// never had its own folder (a lesson filed straight under its module) is
// materialized here from the ref the builder synthesized.
func (s *ImportService) resolveSubjectID(ctx context.Context, courseID string, module, ref *model.EntityRef) (string, error) {
	if ref.ExistingID != "" {
		return ref.ExistingID, nil
	}
	if ref.Code != "" {
		subject, err := s.subjects.GetByCode(ctx, courseID, ref.Code)
		if err == nil {
			ref.ExistingID = subject.ID
			return subject.ID, nil
		}
		if !errors.Is(err, appErr.ErrNotFound) {
			return "", err
		}
	}
	return s.writeSubject(ctx, courseID, module, ref)
}

func (s *ImportService) writeLesson(ctx context.Context, importID, courseID string, task *model.ImportTask) error {
	subjectID, err := s.resolveSubjectID(ctx, courseID, task.Module, task.Subject)
	if err != nil {
		return err
	}
	ref := task.Lesson
	contentURL := ref.ContentURL
	if s.mirror {
		if mirrored, err := s.mirrorContent(ctx, courseID, ref.FileID); err != nil {
			warning := fmt.Sprintf("could not mirror lesson %q, keeping source link: %v", ref.Name, err)
			if err := s.progress.AppendErrors(ctx, importID, []string{warning}); err != nil {
				return err
			}
		} else {
			contentURL = mirrored
		}
	}
	now := time.Now().Unix()
	lesson := &model.Lesson{
		ID:          newID(),
		CourseID:    courseID,
		SubjectID:   subjectID,
		Code:        ref.Code,
		Name:        ref.Name,
		ContentType: ref.ContentType,
		ContentURL:  contentURL,
		Position:    ref.Order,
		Ctime:       now,
		Mtime:       now,
	}
	if ref.ExistingID != "" {
		lesson.ID = ref.ExistingID
	}
	id, err := s.lessons.Upsert(ctx, lesson)
	if err != nil {
		return err
	}
	ref.ExistingID = id
	return nil
}

func (s *ImportService) writeTest(ctx context.Context, courseID string, task *model.ImportTask) error {
	subjectID, err := s.resolveSubjectID(ctx, courseID, task.Module, task.Subject)
	if err != nil {
		return err
	}
	ref := task.Test
	now := time.Now().Unix()
	test := &model.Test{
		ID:                      newID(),
		CourseID:                courseID,
		SubjectID:               subjectID,
		Code:                    ref.Code,
		Name:                    ref.Name,
		ContentType:             ref.ContentType,
		ContentURL:              ref.ContentURL,
		Questions:               ref.Questions,
		AnswerKey:               ref.AnswerKey,
		RequiresManualAnswerKey: ref.RequiresManualAnswerKey,
		Position:                ref.Order,
		Ctime:                   now,
		Mtime:                   now,
	}
	if ref.ExistingID != "" {
		test.ID = ref.ExistingID
	}
	id, err := s.tests.Upsert(ctx, test)
	if err != nil {
		return err
	}
	ref.ExistingID = id
	return nil
}

// mirrorContent copies a remote file into the configured store and returns
// the serving URL. Spools through a temp file because the store wants a
// seekable reader with a known size.
func (s *ImportService) mirrorContent(ctx context.Context, courseID, fileID string) (string, error) {
	body, err := s.drive.Download(ctx, fileID)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()
	tmp, err := os.CreateTemp("", "lms-mirror-*")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	size, err := io.Copy(tmp, body)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("content-%s-%s", courseID, fileID)
	if err := s.store.Save(ctx, key, tmp, size); err != nil {
		return "", err
	}
	return s.store.URL(key, ""), nil
}

func taskName(task *model.ImportTask) string {
	switch task.Type {
	case model.TaskTypeModule:
		return task.Module.Name
	case model.TaskTypeSubject:
		return task.Subject.Name
	case model.TaskTypeLesson:
		return task.Lesson.Name
	case model.TaskTypeTest:
		return task.Test.Name
	default:
		return ""
	}
}

func bumpProcessed(processed *model.ImportTotals, taskType string) {
	switch taskType {
	case model.TaskTypeModule:
		processed.Modules++
	case model.TaskTypeSubject:
		processed.Subjects++
	case model.TaskTypeLesson:
		processed.Lessons++
	case model.TaskTypeTest:
		processed.Tests++
	}
}

func maxTotals(a, b model.ImportTotals) model.ImportTotals {
	return model.ImportTotals{
		Modules:  maxInt(a.Modules, b.Modules),
		Subjects: maxInt(a.Subjects, b.Subjects),
		Lessons:  maxInt(a.Lessons, b.Lessons),
		Tests:    maxInt(a.Tests, b.Tests),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
