package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/classtrack/lms/internal/model"
	"github.com/classtrack/lms/internal/pkg/dbutil"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

type SubjectRepo struct {
	db *sql.DB
}

func NewSubjectRepo(db *sql.DB) *SubjectRepo {
	return &SubjectRepo{db: db}
}

func (r *SubjectRepo) Upsert(ctx context.Context, s *model.Subject) (string, error) {
	const byCode = `
		INSERT INTO subjects (id, course_id, module_id, code, name, position, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (course_id, code) WHERE code <> ''
		DO UPDATE SET module_id = EXCLUDED.module_id, name = EXCLUDED.name, position = EXCLUDED.position, mtime = EXCLUDED.mtime
		RETURNING id
	`
	const byName = `
		INSERT INTO subjects (id, course_id, module_id, code, name, position, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (module_id, name)
		DO UPDATE SET position = EXCLUDED.position, mtime = EXCLUDED.mtime
		RETURNING id
	`
	query := byCode
	if s.Code == "" {
		query = byName
	}
	var id string
	err := r.db.QueryRowContext(ctx, query, s.ID, s.CourseID, s.ModuleID, s.Code, s.Name, s.Position, s.Ctime, s.Mtime).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *SubjectRepo) GetByCode(ctx context.Context, courseID, code string) (*model.Subject, error) {
	return r.getOne(ctx, map[string]interface{}{"course_id": courseID, "code": code})
}

func (r *SubjectRepo) GetByName(ctx context.Context, moduleID, name string) (*model.Subject, error) {
	return r.getOne(ctx, map[string]interface{}{"module_id": moduleID, "name": name})
}

func (r *SubjectRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return countRows(ctx, r.db, "subjects", courseID)
}

func (r *SubjectRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Subject, error) {
	sqlStr, args, err := builder.BuildSelect("subjects", where,
		[]string{"id", "course_id", "module_id", "code", "name", "position", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var s model.Subject
	if err := row.Scan(&s.ID, &s.CourseID, &s.ModuleID, &s.Code, &s.Name, &s.Position, &s.Ctime, &s.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
