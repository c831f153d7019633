package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/renliu0x/askdoc/internal/repo"
)

// RetentionJob sweeps completed and failed jobs older than the
// retention window. Pending work is never touched.
type RetentionJob struct {
	jobs          *repo.JobRepo
	retentionDays int
}

func NewRetentionJob(jobs *repo.JobRepo, retentionDays int) *RetentionJob {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &RetentionJob{jobs: jobs, retentionDays: retentionDays}
}

func (j *RetentionJob) Name() string {
	return "job_retention"
}

func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays).Unix()
	deleted, err := j.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("swept terminal jobs",
			zap.Int64("deleted", deleted), zap.Int("retention_days", j.retentionDays))
	}
	return nil
}
