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

type TestRepo struct {
	db *sql.DB
}

func NewTestRepo(db *sql.DB) *TestRepo {
	return &TestRepo{db: db}
}

func (r *TestRepo) Upsert(ctx context.Context, t *model.Test) (string, error) {
	questionsJSON, err := json.Marshal(t.Questions)
	if err != nil {
		return "", err
	}
	answerKeyJSON := []byte("{}")
	if t.AnswerKey != nil {
		answerKeyJSON, err = json.Marshal(t.AnswerKey)
		if err != nil {
			return "", err
		}
	}
	const byCode = `
		INSERT INTO tests (id, course_id, subject_id, code, name, content_type, content_url,
			questions_json, answer_key_json, requires_manual_answer_key, position, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (course_id, code) WHERE code <> ''
		DO UPDATE SET subject_id = EXCLUDED.subject_id, name = EXCLUDED.name,
			content_type = EXCLUDED.content_type, content_url = EXCLUDED.content_url,
			questions_json = EXCLUDED.questions_json, answer_key_json = EXCLUDED.answer_key_json,
			requires_manual_answer_key = EXCLUDED.requires_manual_answer_key,
			position = EXCLUDED.position, mtime = EXCLUDED.mtime
		RETURNING id
	`
	const byName = `
		INSERT INTO tests (id, course_id, subject_id, code, name, content_type, content_url,
			questions_json, answer_key_json, requires_manual_answer_key, position, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (subject_id, name)
		DO UPDATE SET content_type = EXCLUDED.content_type, content_url = EXCLUDED.content_url,
			questions_json = EXCLUDED.questions_json, answer_key_json = EXCLUDED.answer_key_json,
			requires_manual_answer_key = EXCLUDED.requires_manual_answer_key,
			position = EXCLUDED.position, mtime = EXCLUDED.mtime
		RETURNING id
	`
	query := byCode
	if t.Code == "" {
		query = byName
	}
	var id string
	err = r.db.QueryRowContext(ctx, query,
		t.ID, t.CourseID, t.SubjectID, t.Code, t.Name, t.ContentType, t.ContentURL,
		string(questionsJSON), string(answerKeyJSON), boolToInt(t.RequiresManualAnswerKey),
		t.Position, t.Ctime, t.Mtime,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *TestRepo) GetByName(ctx context.Context, subjectID, name string) (*model.Test, error) {
	return r.getOne(ctx, map[string]interface{}{"subject_id": subjectID, "name": name})
}

func (r *TestRepo) GetByCode(ctx context.Context, courseID, code string) (*model.Test, error) {
	return r.getOne(ctx, map[string]interface{}{"course_id": courseID, "code": code})
}

func (r *TestRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return countRows(ctx, r.db, "tests", courseID)
}

func (r *TestRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Test, error) {
	sqlStr, args, err := builder.BuildSelect("tests", where,
		[]string{"id", "course_id", "subject_id", "code", "name", "content_type", "content_url",
			"questions_json", "answer_key_json", "requires_manual_answer_key", "position", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var t model.Test
	var questionsJSON, answerKeyJSON string
	var manual int
	if err := row.Scan(&t.ID, &t.CourseID, &t.SubjectID, &t.Code, &t.Name, &t.ContentType, &t.ContentURL,
		&questionsJSON, &answerKeyJSON, &manual, &t.Position, &t.Ctime, &t.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	t.RequiresManualAnswerKey = manual == 1
	if questionsJSON != "" {
		_ = json.Unmarshal([]byte(questionsJSON), &t.Questions)
	}
	if answerKeyJSON != "" {
		_ = json.Unmarshal([]byte(answerKeyJSON), &t.AnswerKey)
	}
	return &t, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
