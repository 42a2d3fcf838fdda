package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/classtrack/lms/internal/repo"
)

// JobCleanupJob prunes drive import job records past the retention window.
// Progress rows are kept: clients may poll a finished import long after the
// job record stopped mattering.
type JobCleanupJob struct {
	jobs   *repo.DriveImportJobRepo
	maxAge time.Duration
}

func NewJobCleanupJob(jobs *repo.DriveImportJobRepo, maxAge time.Duration) *JobCleanupJob {
	return &JobCleanupJob{jobs: jobs, maxAge: maxAge}
}

func (j *JobCleanupJob) Name() string {
	return "drive_import_job_cleanup"
}

func (j *JobCleanupJob) Run(ctx context.Context) error {
	if j.jobs == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	deleted, err := j.jobs.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("pruned drive import jobs", zap.Int64("deleted", deleted))
	}
	return nil
}
