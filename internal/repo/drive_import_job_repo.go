package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/classtrack/lms/internal/model"
	appErr "github.com/classtrack/lms/internal/pkg/errors"
)

type DriveImportJobRepo struct {
	db *sql.DB
}

func NewDriveImportJobRepo(db *sql.DB) *DriveImportJobRepo {
	return &DriveImportJobRepo{db: db}
}

func (r *DriveImportJobRepo) Create(ctx context.Context, job *model.DriveImportJob) error {
	metadataJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO drive_import_jobs (id, user_id, metadata_json, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.ExecContext(ctx, query, job.ID, job.UserID, string(metadataJSON), job.Ctime, job.Mtime)
	return err
}

func (r *DriveImportJobRepo) Get(ctx context.Context, jobID string) (*model.DriveImportJob, error) {
	const query = `
		SELECT id, user_id, metadata_json, ctime, mtime
		FROM drive_import_jobs
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, jobID)
	var job model.DriveImportJob
	var metadataJSON string
	if err := row.Scan(&job.ID, &job.UserID, &metadataJSON, &job.Ctime, &job.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if metadataJSON != "" {
		_ = json.Unmarshal([]byte(metadataJSON), &job.Metadata)
	}
	return &job, nil
}

func (r *DriveImportJobRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM drive_import_jobs WHERE ctime < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
