package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/classtrack/lms/internal/model"
	"github.com/classtrack/lms/internal/pkg/dbutil"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

type CourseRepo struct {
	db *sql.DB
}

func NewCourseRepo(db *sql.DB) *CourseRepo {
	return &CourseRepo{db: db}
}

func (r *CourseRepo) Create(ctx context.Context, course *model.Course) error {
	data := map[string]interface{}{
		"id":       course.ID,
		"owner_id": course.OwnerID,
		"name":     course.Name,
		"ctime":    course.Ctime,
		"mtime":    course.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("courses", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *CourseRepo) Get(ctx context.Context, courseID string) (*model.Course, error) {
	where := map[string]interface{}{"id": courseID}
	sqlStr, args, err := builder.BuildSelect("courses", where, []string{"id", "owner_id", "name", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var course model.Course
	if err := row.Scan(&course.ID, &course.OwnerID, &course.Name, &course.Ctime, &course.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}
