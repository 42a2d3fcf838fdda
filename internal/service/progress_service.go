package service

import (
	"context"
	"time"

	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
	"github.com/classtrack/lms/internal/repo"
)

// ProgressService owns the progress rows clients poll during an import. Rows
// are written only by the orchestrator; the two read paths are the owning
// session and the capability token minted when the import was triggered.
type ProgressService struct {
	progress *repo.ImportProgressRepo
	jobs     *repo.DriveImportJobRepo
}

func NewProgressService(progress *repo.ImportProgressRepo, jobs *repo.DriveImportJobRepo) *ProgressService {
	return &ProgressService{progress: progress, jobs: jobs}
}

func (s *ProgressService) Create(ctx context.Context, importID, userID, courseID string) error {
	now := time.Now().Unix()
	return s.progress.Create(ctx, &model.ImportProgress{
		ImportID:    importID,
		UserID:      userID,
		CourseID:    courseID,
		CurrentStep: "queued",
		Phase:       model.PhaseListing,
		Errors:      []string{},
		Ctime:       now,
		Mtime:       now,
	})
}

func (s *ProgressService) Get(ctx context.Context, importID string) (*model.ImportProgress, error) {
	return s.progress.Get(ctx, importID)
}

// GetForUser is the session read path. A row owned by someone else reads the
// same as a missing row.
func (s *ProgressService) GetForUser(ctx context.Context, userID, importID string) (*model.ImportProgress, error) {
	p, err := s.progress.Get(ctx, importID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	normalize(p)
	return p, nil
}

// GetByToken is the polling path that needs no session: the caller presents
// the job id plus the capability token minted with it, and both must match
// the import. Every mismatch reads as the same unauthorized error.
func (s *ProgressService) GetByToken(ctx context.Context, importID, jobID, token string) (*model.ImportProgress, error) {
	if importID == "" || jobID == "" || token == "" {
		return nil, appErr.ErrUnauthorized
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, appErr.ErrUnauthorized
	}
	if job.Metadata.ImportID != importID || job.Metadata.ProgressToken != token {
		return nil, appErr.ErrUnauthorized
	}
	p, err := s.progress.Get(ctx, importID)
	if err != nil {
		return nil, err
	}
	normalize(p)
	return p, nil
}

func (s *ProgressService) List(ctx context.Context, userID string, limit int) ([]*model.ImportProgress, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := s.progress.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		normalize(p)
	}
	return items, nil
}

// SetTotals merges newly discovered per-level totals. Totals only ever grow
// across listing passes.
func (s *ProgressService) SetTotals(ctx context.Context, importID string, totals model.ImportTotals) error {
	return s.progress.Update(ctx, importID, map[string]interface{}{
		"total_modules":  totals.Modules,
		"total_subjects": totals.Subjects,
		"total_lessons":  totals.Lessons,
		"total_tests":    totals.Tests,
		"mtime":          time.Now().Unix(),
	})
}

func (s *ProgressService) SetPhase(ctx context.Context, importID, phase, step string) error {
	return s.progress.Update(ctx, importID, map[string]interface{}{
		"phase":        phase,
		"current_step": step,
		"mtime":        time.Now().Unix(),
	})
}

// Advance records per-level processed counts after one task. The floor is the
// percentage already reported; the stored value never moves backwards even
// when a later listing pass grows the totals. Returns the stored percentage.
func (s *ProgressService) Advance(ctx context.Context, importID string, processed, totals model.ImportTotals,
	currentItem string, floor int) (int, error) {
	pct := percentageOf(processed, totals)
	if pct < floor {
		pct = floor
	}
	if pct > 100 {
		pct = 100
	}
	err := s.progress.Update(ctx, importID, map[string]interface{}{
		"processed_modules":  processed.Modules,
		"processed_subjects": processed.Subjects,
		"processed_lessons":  processed.Lessons,
		"processed_tests":    processed.Tests,
		"current_item":       currentItem,
		"percentage":         pct,
		"mtime":              time.Now().Unix(),
	})
	return pct, err
}

// AppendErrors adds per-item failure messages. The list is append only.
func (s *ProgressService) AppendErrors(ctx context.Context, importID string, messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	p, err := s.progress.Get(ctx, importID)
	if err != nil {
		return err
	}
	merged := append(append([]string{}, p.Errors...), messages...)
	return s.progress.Update(ctx, importID, map[string]interface{}{
		"errors_json": mustJSON(merged),
		"mtime":       time.Now().Unix(),
	})
}

func (s *ProgressService) Complete(ctx context.Context, importID string) error {
	return s.progress.Update(ctx, importID, map[string]interface{}{
		"phase":        model.PhaseCompleted,
		"current_step": "completed",
		"percentage":   100,
		"completed":    1,
		"mtime":        time.Now().Unix(),
	})
}

// Fail marks the import terminally failed after the last retry.
func (s *ProgressService) Fail(ctx context.Context, importID, message string) error {
	if err := s.AppendErrors(ctx, importID, []string{message}); err != nil && !appErr.IsNotFound(err) {
		return err
	}
	return s.progress.Update(ctx, importID, map[string]interface{}{
		"phase":        model.PhaseError,
		"current_step": "failed",
		"completed":    1,
		"mtime":        time.Now().Unix(),
	})
}

// MarkCancelled finalizes a row whose cancel flag the orchestrator observed.
func (s *ProgressService) MarkCancelled(ctx context.Context, importID string) error {
	return s.progress.Update(ctx, importID, map[string]interface{}{
		"phase":        model.PhaseCancelled,
		"current_step": "cancelled",
		"completed":    1,
		"mtime":        time.Now().Unix(),
	})
}

// Cancel is the user-facing request; the orchestrator honors the flag at its
// next chunk boundary.
func (s *ProgressService) Cancel(ctx context.Context, userID, importID string) error {
	return s.progress.Cancel(ctx, userID, importID, time.Now().Unix())
}

func percentageOf(processed, totals model.ImportTotals) int {
	total := totals.Sum()
	if total == 0 {
		return 0
	}
	return processed.Sum() * 100 / total
}

// normalize guards the read paths against a row written with an out-of-range
// percentage.
func normalize(p *model.ImportProgress) {
	if p.Percentage >= 0 && p.Percentage <= 100 {
		return
	}
	p.Percentage = percentageOf(
		model.ImportTotals{Modules: p.ProcessedModules, Subjects: p.ProcessedSubjects, Lessons: p.ProcessedLessons, Tests: p.ProcessedTests},
		model.ImportTotals{Modules: p.TotalModules, Subjects: p.TotalSubjects, Lessons: p.TotalLessons, Tests: p.TotalTests},
	)
}
