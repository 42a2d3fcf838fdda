package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/classtrack/lms/internal/model"
	"github.com/classtrack/lms/internal/pkg/dbutil"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

type ImportProgressRepo struct {
	db *sql.DB
}

func NewImportProgressRepo(db *sql.DB) *ImportProgressRepo {
	return &ImportProgressRepo{db: db}
}

func (r *ImportProgressRepo) Create(ctx context.Context, p *model.ImportProgress) error {
	errorsJSON, err := json.Marshal(p.Errors)
	if err != nil {
		return err
	}
	if p.Errors == nil {
		errorsJSON = []byte("[]")
	}
	data := map[string]interface{}{
		"import_id":          p.ImportID,
		"user_id":            p.UserID,
		"course_id":          p.CourseID,
		"current_step":       p.CurrentStep,
		"phase":              p.Phase,
		"total_modules":      p.TotalModules,
		"processed_modules":  p.ProcessedModules,
		"total_subjects":     p.TotalSubjects,
		"processed_subjects": p.ProcessedSubjects,
		"total_lessons":      p.TotalLessons,
		"processed_lessons":  p.ProcessedLessons,
		"total_tests":        p.TotalTests,
		"processed_tests":    p.ProcessedTests,
		"current_item":       p.CurrentItem,
		"errors_json":        string(errorsJSON),
		"completed":          boolToInt(p.Completed),
		"cancelled":          boolToInt(p.Cancelled),
		"percentage":         p.Percentage,
		"ctime":              p.Ctime,
		"mtime":              p.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("import_progress", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil && dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *ImportProgressRepo) Get(ctx context.Context, importID string) (*model.ImportProgress, error) {
	sqlStr, args, err := builder.BuildSelect("import_progress",
		map[string]interface{}{"import_id": importID},
		[]string{"import_id", "user_id", "course_id", "current_step", "phase",
			"total_modules", "processed_modules", "total_subjects", "processed_subjects",
			"total_lessons", "processed_lessons", "total_tests", "processed_tests",
			"current_item", "errors_json", "completed", "cancelled", "percentage", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.scanOne(r.db.QueryRowContext(ctx, sqlStr, args...))
}

// Update merges the given fields into the row. Once a row is completed it is
// terminal for the orchestrator: all further updates are rejected.
func (r *ImportProgressRepo) Update(ctx context.Context, importID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	where := map[string]interface{}{
		"import_id": importID,
		"completed": 0,
	}
	sqlStr, args, err := builder.BuildUpdate("import_progress", where, fields)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Cancel flags a not-yet-completed import; the orchestrator checks the flag
// at the top of every invocation.
func (r *ImportProgressRepo) Cancel(ctx context.Context, userID, importID string, mtime int64) error {
	const query = `
		UPDATE import_progress
		SET cancelled = 1, mtime = $1
		WHERE import_id = $2 AND user_id = $3 AND completed = 0
	`
	res, err := r.db.ExecContext(ctx, query, mtime, importID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *ImportProgressRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ImportProgress, error) {
	const query = `
		SELECT import_id, user_id, course_id, current_step, phase,
			total_modules, processed_modules, total_subjects, processed_subjects,
			total_lessons, processed_lessons, total_tests, processed_tests,
			current_item, errors_json, completed, cancelled, percentage, ctime, mtime
		FROM import_progress
		WHERE user_id = $1
		ORDER BY mtime DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]*model.ImportProgress, 0)
	for rows.Next() {
		p, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ImportProgressRepo) scanOne(row rowScanner) (*model.ImportProgress, error) {
	var p model.ImportProgress
	var errorsJSON string
	var completed, cancelled int
	if err := row.Scan(&p.ImportID, &p.UserID, &p.CourseID, &p.CurrentStep, &p.Phase,
		&p.TotalModules, &p.ProcessedModules, &p.TotalSubjects, &p.ProcessedSubjects,
		&p.TotalLessons, &p.ProcessedLessons, &p.TotalTests, &p.ProcessedTests,
		&p.CurrentItem, &errorsJSON, &completed, &cancelled, &p.Percentage, &p.Ctime, &p.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	p.Completed = completed == 1
	p.Cancelled = cancelled == 1
	p.Errors = []string{}
	if errorsJSON != "" {
		_ = json.Unmarshal([]byte(errorsJSON), &p.Errors)
	}
	return &p, nil
}
