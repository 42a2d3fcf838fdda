package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/classtrack/lms/internal/model"
	"github.com/classtrack/lms/internal/pkg/dbutil"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

type LessonRepo struct {
	db *sql.DB
}

func NewLessonRepo(db *sql.DB) *LessonRepo {
	return &LessonRepo{db: db}
}

func (r *LessonRepo) Upsert(ctx context.Context, l *model.Lesson) (string, error) {
	const byCode = `
		INSERT INTO lessons (id, course_id, subject_id, code, name, content_type, content_url, position, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (course_id, code) WHERE code <> ''
		DO UPDATE SET subject_id = EXCLUDED.subject_id, name = EXCLUDED.name,
			content_type = EXCLUDED.content_type, content_url = EXCLUDED.content_url,
			position = EXCLUDED.position, mtime = EXCLUDED.mtime
		RETURNING id
	`
	const byName = `
		INSERT INTO lessons (id, course_id, subject_id, code, name, content_type, content_url, position, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (subject_id, name)
		DO UPDATE SET content_type = EXCLUDED.content_type, content_url = EXCLUDED.content_url,
			position = EXCLUDED.position, mtime = EXCLUDED.mtime
		RETURNING id
	`
	query := byCode
	if l.Code == "" {
		query = byName
	}
	var id string
	err := r.db.QueryRowContext(ctx, query,
		l.ID, l.CourseID, l.SubjectID, l.Code, l.Name, l.ContentType, l.ContentURL, l.Position, l.Ctime, l.Mtime,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *LessonRepo) GetByCode(ctx context.Context, courseID, code string) (*model.Lesson, error) {
	sqlStr, args, err := builder.BuildSelect("lessons",
		map[string]interface{}{"course_id": courseID, "code": code},
		[]string{"id", "course_id", "subject_id", "code", "name", "content_type", "content_url", "position", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var l model.Lesson
	if err := row.Scan(&l.ID, &l.CourseID, &l.SubjectID, &l.Code, &l.Name, &l.ContentType, &l.ContentURL, &l.Position, &l.Ctime, &l.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *LessonRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return countRows(ctx, r.db, "lessons", courseID)
}
