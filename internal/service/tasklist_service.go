package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/classtrack/lms/internal/classify"
	"github.com/classtrack/lms/internal/drive"
	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
	"github.com/classtrack/lms/internal/repo"
)

// TaskListService turns a remote folder tree into an ordered list of import
// tasks. One Build call examines at most maxItems remote entries; when the
// tree is larger it returns a cursor that resumes the walk exactly where it
// stopped. The walk is breadth first, so a parent's task is always emitted
// before any task that references it, including across cursor boundaries.
type TaskListService struct {
	drive     drive.Client
	modules   *repo.CourseModuleRepo
	subjects  *repo.SubjectRepo
	lessons   *repo.LessonRepo
	tests     *repo.TestRepo
	extractor *AnswerKeyExtractor
	maxItems  int
}

func NewTaskListService(client drive.Client, modules *repo.CourseModuleRepo, subjects *repo.SubjectRepo,
	lessons *repo.LessonRepo, tests *repo.TestRepo, extractor *AnswerKeyExtractor, maxItems int) *TaskListService {
	return &TaskListService{
		drive:     client,
		modules:   modules,
		subjects:  subjects,
		lessons:   lessons,
		tests:     tests,
		extractor: extractor,
		maxItems:  maxItems,
	}
}

type BuildInput struct {
	DriveURL string
	CourseID string
	Cursor   string
}

type BuildResult struct {
	Tasks      []*model.ImportTask
	Summary    model.ImportSummary
	Totals     model.ImportTotals
	NextCursor string
}

func (s *TaskListService) Build(ctx context.Context, input *BuildInput) (*BuildResult, error) {
	cursor, err := s.initCursor(input)
	if err != nil {
		return nil, err
	}
	result := &BuildResult{}
	budget := s.maxItems
	for budget > 0 && len(cursor.Pending) > 0 {
		frame := cursor.Pending[0]
		cursor.Pending = cursor.Pending[1:]
		exhausted, err := s.walkFolder(ctx, input.CourseID, &frame, cursor, result, &budget)
		if err != nil {
			return nil, err
		}
		if !exhausted {
			cursor.Pending = append([]dirFrame{frame}, cursor.Pending...)
		}
	}
	result.Totals = cursor.Totals
	if len(cursor.Pending) > 0 {
		encoded, err := EncodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		result.NextCursor = encoded
	}
	logutil.GetLogger(ctx).Info("task list pass finished",
		zap.String("course_id", input.CourseID),
		zap.Int("tasks", len(result.Tasks)),
		zap.Int("unknown", result.Summary.Unknown),
		zap.Bool("partial", result.NextCursor != ""))
	return result, nil
}

func (s *TaskListService) initCursor(input *BuildInput) (*ImportCursor, error) {
	if input.Cursor != "" {
		return DecodeCursor(input.Cursor)
	}
	rootID, err := drive.ResolveFolderURL(input.DriveURL)
	if err != nil {
		return nil, err
	}
	return &ImportCursor{Pending: []dirFrame{{FolderID: rootID}}}, nil
}

// walkFolder consumes pages of one directory until the directory or the item
// budget is exhausted. A listing failure on the root folder aborts the whole
// build; below the root it downgrades to a warning and the subtree is skipped.
func (s *TaskListService) walkFolder(ctx context.Context, courseID string, frame *dirFrame,
	cursor *ImportCursor, result *BuildResult, budget *int) (bool, error) {
	for {
		page, err := s.drive.ListFolder(ctx, frame.FolderID, frame.PageToken)
		if err != nil {
			if frame.Depth == 0 {
				return false, err
			}
			result.Summary.Warnings = append(result.Summary.Warnings,
				fmt.Sprintf("skipped folder %q: %v", frame.FolderName, err))
			return true, nil
		}
		for frame.ChildIndex < len(page.Items) {
			if *budget == 0 {
				return false, nil
			}
			if err := s.handleItem(ctx, courseID, frame, page.Items[frame.ChildIndex], cursor, result); err != nil {
				return false, err
			}
			frame.ChildIndex++
			cursor.ItemIndex++
			*budget = *budget - 1
		}
		if page.NextPageToken == "" {
			return true, nil
		}
		frame.PageToken = page.NextPageToken
		frame.ChildIndex = 0
		if *budget == 0 {
			return false, nil
		}
	}
}

func (s *TaskListService) handleItem(ctx context.Context, courseID string, frame *dirFrame,
	item drive.RemoteItem, cursor *ImportCursor, result *BuildResult) error {
	switch frame.Depth {
	case 0:
		return s.handleRootItem(ctx, courseID, item, cursor, result)
	case 1:
		return s.handleModuleItem(ctx, courseID, frame, item, cursor, result)
	default:
		return s.handleSubjectItem(ctx, courseID, frame, item, cursor, result)
	}
}

// handleRootItem treats every root-level folder as a module: the structural
// position decides the level, the name only refines the code and ordering.
func (s *TaskListService) handleRootItem(ctx context.Context, courseID string,
	item drive.RemoteItem, cursor *ImportCursor, result *BuildResult) error {
	if !item.IsFolder() {
		result.Summary.Unknown++
		result.Summary.Warnings = append(result.Summary.Warnings,
			fmt.Sprintf("top-level file %q does not belong to any module", item.Name))
		return nil
	}
	cls := classify.Classify(item.Name)
	code := ""
	if cls.Level == classify.LevelModule {
		code = cls.Code
	}
	ref := &model.EntityRef{
		OriginalIndex: cursor.ItemIndex,
		Name:          item.Name,
		Code:          code,
		Order:         classify.Order(item.Name),
	}
	existing, err := s.findModule(ctx, courseID, ref)
	if err != nil {
		return err
	}
	ref.ExistingID = existing
	result.Tasks = append(result.Tasks, &model.ImportTask{
		ID:     newID(),
		Type:   model.TaskTypeModule,
		Module: ref,
	})
	cursor.Totals.Modules++
	result.Summary.Modules++
	cursor.Pending = append(cursor.Pending, dirFrame{
		FolderID:   item.ID,
		FolderName: item.Name,
		Depth:      1,
		Module:     ref,
	})
	return nil
}

func (s *TaskListService) handleModuleItem(ctx context.Context, courseID string, frame *dirFrame,
	item drive.RemoteItem, cursor *ImportCursor, result *BuildResult) error {
	if item.IsFolder() {
		cls := classify.Classify(item.Name)
		code := ""
		if cls.Level == classify.LevelSubject {
			code = cls.Code
			if parent, err := classify.ParentCode(code); err == nil && frame.Module.Code != "" && parent != frame.Module.Code {
				result.Summary.Warnings = append(result.Summary.Warnings,
					fmt.Sprintf("subject %q is filed under module %q but its code points at %q", item.Name, frame.Module.Code, parent))
			}
		}
		ref := &model.EntityRef{
			OriginalIndex: cursor.ItemIndex,
			Name:          item.Name,
			Code:          code,
			Order:         classify.Order(item.Name),
		}
		existing, err := s.findSubject(ctx, courseID, frame.Module, ref)
		if err != nil {
			return err
		}
		ref.ExistingID = existing
		result.Tasks = append(result.Tasks, &model.ImportTask{
			ID:      newID(),
			Type:    model.TaskTypeSubject,
			Module:  frame.Module,
			Subject: ref,
		})
		cursor.Totals.Subjects++
		result.Summary.Subjects++
		cursor.Pending = append(cursor.Pending, dirFrame{
			FolderID:   item.ID,
			FolderName: item.Name,
			Depth:      2,
			Module:     frame.Module,
			Subject:    ref,
		})
		return nil
	}
	cls := classify.Classify(item.Name)
	switch cls.Level {
	case classify.LevelLesson:
		// A lesson filed directly under its module; the subject comes from
		// the lesson code and materializes when the task is written.
		parent, err := classify.ParentCode(cls.Code)
		if err != nil {
			result.Summary.Unknown++
			result.Summary.Warnings = append(result.Summary.Warnings,
				fmt.Sprintf("unrecognized item %q under module %q", item.Name, frame.FolderName))
			return nil
		}
		subject := &model.EntityRef{
			OriginalIndex: cursor.ItemIndex,
			Name:          parent,
			Code:          parent,
			Order:         classify.Order(parent),
		}
		existing, err := s.findSubject(ctx, courseID, frame.Module, subject)
		if err != nil {
			return err
		}
		subject.ExistingID = existing
		return s.emitLesson(ctx, courseID, frame.Module, subject, item, cls, cursor, result)
	case classify.LevelTest:
		result.Summary.Unknown++
		result.Summary.Warnings = append(result.Summary.Warnings,
			fmt.Sprintf("test %q sits outside any subject and was skipped", item.Name))
		return nil
	default:
		result.Summary.Unknown++
		result.Summary.Warnings = append(result.Summary.Warnings,
			fmt.Sprintf("unrecognized item %q under module %q", item.Name, frame.FolderName))
		return nil
	}
}

func (s *TaskListService) handleSubjectItem(ctx context.Context, courseID string, frame *dirFrame,
	item drive.RemoteItem, cursor *ImportCursor, result *BuildResult) error {
	if item.IsFolder() {
		result.Summary.Unknown++
		result.Summary.Warnings = append(result.Summary.Warnings,
			fmt.Sprintf("folder %q nested below subject %q is not traversed", item.Name, frame.FolderName))
		return nil
	}
	cls := classify.Classify(item.Name)
	switch cls.Level {
	case classify.LevelTest:
		return s.emitTest(ctx, courseID, frame.Module, frame.Subject, item, cls, cursor, result)
	case classify.LevelLesson:
		if frame.Subject.Code != "" {
			if parent, err := classify.ParentCode(cls.Code); err == nil && parent != frame.Subject.Code {
				result.Summary.Warnings = append(result.Summary.Warnings,
					fmt.Sprintf("lesson %q is filed under subject %q but its code points at %q", item.Name, frame.Subject.Code, parent))
			}
		}
		return s.emitLesson(ctx, courseID, frame.Module, frame.Subject, item, cls, cursor, result)
	default:
		result.Summary.Unknown++
		result.Summary.Warnings = append(result.Summary.Warnings,
			fmt.Sprintf("unrecognized item %q under subject %q", item.Name, frame.FolderName))
		return nil
	}
}

func (s *TaskListService) emitLesson(ctx context.Context, courseID string, module, subject *model.EntityRef,
	item drive.RemoteItem, cls classify.Classification, cursor *ImportCursor, result *BuildResult) error {
	ref := &model.LessonRef{
		OriginalIndex: cursor.ItemIndex,
		Name:          item.Name,
		Code:          cls.Code,
		Order:         classify.Order(item.Name),
		FileID:        item.ID,
		ContentType:   contentTypeOf(item.MimeType),
		ContentURL:    drive.FileViewURL(item.ID),
	}
	if ref.Code != "" {
		lesson, err := s.lessons.GetByCode(ctx, courseID, ref.Code)
		if err != nil && !errors.Is(err, appErr.ErrNotFound) {
			return err
		}
		if lesson != nil {
			ref.ExistingID = lesson.ID
		}
	}
	result.Tasks = append(result.Tasks, &model.ImportTask{
		ID:      newID(),
		Type:    model.TaskTypeLesson,
		Module:  module,
		Subject: subject,
		Lesson:  ref,
	})
	cursor.Totals.Lessons++
	result.Summary.Lessons++
	return nil
}

func (s *TaskListService) emitTest(ctx context.Context, courseID string, module, subject *model.EntityRef,
	item drive.RemoteItem, cls classify.Classification, cursor *ImportCursor, result *BuildResult) error {
	ref := &model.TestRef{
		OriginalIndex: cursor.ItemIndex,
		Name:          item.Name,
		Code:          cls.Code,
		Order:         classify.Order(item.Name),
		FileID:        item.ID,
		ContentType:   contentTypeOf(item.MimeType),
		ContentURL:    drive.FileViewURL(item.ID),
	}
	if item.MimeType == drive.MimeGoogleDoc {
		s.extractAnswerKey(ctx, item, ref, result)
	} else {
		ref.RequiresManualAnswerKey = true
	}
	if ref.Code != "" {
		test, err := s.tests.GetByCode(ctx, courseID, ref.Code)
		if err != nil && !errors.Is(err, appErr.ErrNotFound) {
			return err
		}
		if test != nil {
			ref.ExistingID = test.ID
		}
	} else if subject.ExistingID != "" {
		test, err := s.tests.GetByName(ctx, subject.ExistingID, item.Name)
		if err != nil && !errors.Is(err, appErr.ErrNotFound) {
			return err
		}
		if test != nil {
			ref.ExistingID = test.ID
		}
	}
	result.Tasks = append(result.Tasks, &model.ImportTask{
		ID:      newID(),
		Type:    model.TaskTypeTest,
		Module:  module,
		Subject: subject,
		Test:    ref,
	})
	cursor.Totals.Tests++
	result.Summary.Tests++
	return nil
}

// extractAnswerKey never fails the task: a test whose key cannot be read is
// still imported, flagged for manual entry.
func (s *TaskListService) extractAnswerKey(ctx context.Context, item drive.RemoteItem,
	ref *model.TestRef, result *BuildResult) {
	content, err := s.drive.ExportText(ctx, item.ID)
	if err != nil {
		ref.RequiresManualAnswerKey = true
		result.Summary.Warnings = append(result.Summary.Warnings,
			fmt.Sprintf("could not export test %q for answer key extraction: %v", item.Name, err))
		return
	}
	extracted, err := s.extractor.Extract(ctx, content)
	if extracted != nil {
		ref.Questions = extracted.Questions
		ref.AnswerKey = extracted.AnswerKey
	}
	if err != nil {
		ref.RequiresManualAnswerKey = true
		result.Summary.Warnings = append(result.Summary.Warnings,
			fmt.Sprintf("no answer key found in test %q, manual entry required", item.Name))
	}
}

func (s *TaskListService) findModule(ctx context.Context, courseID string, ref *model.EntityRef) (string, error) {
	var existing *model.CourseModule
	var err error
	if ref.Code != "" {
		existing, err = s.modules.GetByCode(ctx, courseID, ref.Code)
	} else {
		existing, err = s.modules.GetByName(ctx, courseID, ref.Name)
	}
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return existing.ID, nil
}

func (s *TaskListService) findSubject(ctx context.Context, courseID string, module, ref *model.EntityRef) (string, error) {
	var existing *model.Subject
	var err error
	switch {
	case ref.Code != "":
		existing, err = s.subjects.GetByCode(ctx, courseID, ref.Code)
	case module.ExistingID != "":
		existing, err = s.subjects.GetByName(ctx, module.ExistingID, ref.Name)
	default:
		return "", nil
	}
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return existing.ID, nil
}

func contentTypeOf(mimeType string) string {
	switch {
	case mimeType == drive.MimeGoogleDoc:
		return "document"
	case mimeType == "application/pdf":
		return "pdf"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	default:
		return "file"
	}
}
