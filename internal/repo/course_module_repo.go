package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/classtrack/lms/internal/model"
	"github.com/classtrack/lms/internal/pkg/dbutil"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

type CourseModuleRepo struct {
	db *sql.DB
}

func NewCourseModuleRepo(db *sql.DB) *CourseModuleRepo {
	return &CourseModuleRepo{db: db}
}

// Upsert creates or updates the module keyed by (course, code); modules
// without a structural code fall back to (course, name). Returns the row id,
// which is the pre-existing id when the module was already imported.
func (r *CourseModuleRepo) Upsert(ctx context.Context, m *model.CourseModule) (string, error) {
	const byCode = `
		INSERT INTO course_modules (id, course_id, code, name, position, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (course_id, code) WHERE code <> ''
		DO UPDATE SET name = EXCLUDED.name, position = EXCLUDED.position, mtime = EXCLUDED.mtime
		RETURNING id
	`
	const byName = `
		INSERT INTO course_modules (id, course_id, code, name, position, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (course_id, name)
		DO UPDATE SET position = EXCLUDED.position, mtime = EXCLUDED.mtime
		RETURNING id
	`
	query := byCode
	if m.Code == "" {
		query = byName
	}
	var id string
	err := r.db.QueryRowContext(ctx, query, m.ID, m.CourseID, m.Code, m.Name, m.Position, m.Ctime, m.Mtime).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *CourseModuleRepo) GetByCode(ctx context.Context, courseID, code string) (*model.CourseModule, error) {
	return r.getOne(ctx, map[string]interface{}{"course_id": courseID, "code": code})
}

func (r *CourseModuleRepo) GetByName(ctx context.Context, courseID, name string) (*model.CourseModule, error) {
	return r.getOne(ctx, map[string]interface{}{"course_id": courseID, "name": name})
}

func (r *CourseModuleRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return countRows(ctx, r.db, "course_modules", courseID)
}

func (r *CourseModuleRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.CourseModule, error) {
	sqlStr, args, err := builder.BuildSelect("course_modules", where, []string{"id", "course_id", "code", "name", "position", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var m model.CourseModule
	if err := row.Scan(&m.ID, &m.CourseID, &m.Code, &m.Name, &m.Position, &m.Ctime, &m.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func countRows(ctx context.Context, db *sql.DB, table, courseID string) (int, error) {
	where := map[string]interface{}{"course_id": courseID}
	sqlStr, args, err := builder.BuildSelect(table, where, []string{"count(*)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var count int
	if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
