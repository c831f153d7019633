package repo

import (
	"context"
	"database/sql"

	"github.com/renliu0x/askdoc/internal/model"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
)

type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, job_type, payload, status, attempts, max_attempts, progress, stage, result, error, available_at, ctime, mtime`

func scanJob(row interface{ Scan(...interface{}) error }) (*model.Job, error) {
	var job model.Job
	if err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Payload,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Progress,
		&job.Stage,
		&job.Result,
		&job.Error,
		&job.AvailableAt,
		&job.Ctime,
		&job.Mtime,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepo) Create(ctx context.Context, job *model.Job) error {
	const query = `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.Type,
		job.Payload,
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.Progress,
		job.Stage,
		job.Result,
		job.Error,
		job.AvailableAt,
		job.Ctime,
		job.Mtime,
	)
	return err
}

func (r *JobRepo) Get(ctx context.Context, jobID string) (*model.Job, error) {
	const query = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Update persists all mutable job fields. Only the engine's executor
// loop calls this.
func (r *JobRepo) Update(ctx context.Context, job *model.Job) error {
	const query = `
		UPDATE jobs
		SET status = $2, attempts = $3, progress = $4, stage = $5,
		    result = $6, error = $7, available_at = $8, mtime = $9
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.Attempts,
		job.Progress,
		job.Stage,
		job.Result,
		job.Error,
		job.AvailableAt,
		job.Mtime,
	)
	return err
}

func (r *JobRepo) UpdateProgress(ctx context.Context, jobID string, progress int, stage string, mtime int64) error {
	const query = `UPDATE jobs SET progress = $2, stage = $3, mtime = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, jobID, progress, stage, mtime)
	return err
}

// ListPending returns queued and processing jobs in enqueue order; the
// engine replays them at startup.
func (r *JobRepo) ListPending(ctx context.Context) ([]*model.Job, error) {
	const query = `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ($1, $2)
		ORDER BY ctime, id
	`
	rows, err := r.db.QueryContext(ctx, query, model.JobStatusQueued, model.JobStatusProcessing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepo) CountByStatus(ctx context.Context) (*model.QueueState, error) {
	const query = `SELECT status, COUNT(*) FROM jobs GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var state model.QueueState
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case model.JobStatusQueued:
			state.Queued = count
		case model.JobStatusProcessing:
			state.Processing = count
		case model.JobStatusCompleted:
			state.Completed = count
		case model.JobStatusFailed:
			state.Failed = count
		}
	}
	return &state, rows.Err()
}

// DeleteTerminalBefore removes completed and failed jobs older than
// the cutoff; pending jobs are never swept.
func (r *JobRepo) DeleteTerminalBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `
		DELETE FROM jobs
		WHERE status IN ($1, $2) AND mtime < $3
	`
	res, err := r.db.ExecContext(ctx, query, model.JobStatusCompleted, model.JobStatusFailed, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
