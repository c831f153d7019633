package jobengine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/renliu0x/askdoc/internal/model"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
	"github.com/renliu0x/askdoc/internal/pkg/timeutil"
)

// JobStore is the durable side of the engine; *repo.JobRepo implements
// it.
type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	UpdateProgress(ctx context.Context, jobID string, progress int, stage string, mtime int64) error
	ListPending(ctx context.Context) ([]*model.Job, error)
	CountByStatus(ctx context.Context) (*model.QueueState, error)
}

// Handler executes one job attempt. onProgress may be called with a
// stage name and percentage; the engine clamps regressions so a
// client polling the job always sees progress advance.
type Handler func(ctx context.Context, job *model.Job, onProgress func(stage string, percent int)) (result string, err error)

type laneEntry struct {
	jobID       string
	availableAt time.Time
}

// Engine is a single-lane durable task executor: exactly one job
// handler runs at a time, retries re-enter the tail of the lane with
// an exponential backoff due-time, and pending jobs are replayed from
// the store after a restart.
type Engine struct {
	store       JobStore
	handlers    map[string]Handler
	maxAttempts int
	backoffBase time.Duration

	mu   sync.Mutex
	lane []laneEntry

	wake chan struct{}
	done chan struct{}
}

type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
}

func New(store JobStore, cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	return &Engine{
		store:       store,
		handlers:    make(map[string]Handler),
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (e *Engine) RegisterHandler(jobType string, handler Handler) {
	e.handlers[jobType] = handler
}

// Start recovers pending jobs from the store and launches the executor
// loop. Jobs found in the processing state were interrupted by a crash
// or shutdown; they are requeued, never dropped.
func (e *Engine) Start(ctx context.Context) error {
	pending, err := e.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending jobs: %w", err)
	}
	logger := logutil.GetLogger(ctx)
	for _, job := range pending {
		if job.Status == model.JobStatusProcessing {
			logger.Warn("requeueing interrupted job", zap.String("job_id", job.ID), zap.String("type", job.Type))
			job.Status = model.JobStatusQueued
			job.Mtime = timeutil.NowUnix()
			if err := e.store.Update(ctx, job); err != nil {
				return fmt.Errorf("requeue interrupted job %s: %w", job.ID, err)
			}
		}
		e.push(job.ID, time.Unix(job.AvailableAt, 0))
	}
	go e.loop(ctx)
	return nil
}

// Enqueue persists a new job at the tail of the lane.
func (e *Engine) Enqueue(ctx context.Context, jobType, payload string) (*model.Job, error) {
	if e.handlers[jobType] == nil {
		return nil, fmt.Errorf("%w: unknown job type %s", appErr.ErrInvalid, jobType)
	}
	now := time.Now()
	job := &model.Job{
		ID:          newJobID(),
		Type:        jobType,
		Payload:     payload,
		Status:      model.JobStatusQueued,
		MaxAttempts: e.maxAttempts,
		AvailableAt: now.Unix(),
		Ctime:       now.Unix(),
		Mtime:       now.Unix(),
	}
	if err := e.store.Create(ctx, job); err != nil {
		return nil, err
	}
	e.push(job.ID, now)
	logutil.GetLogger(ctx).Info("job enqueued", zap.String("job_id", job.ID), zap.String("type", jobType))
	return job, nil
}

func (e *Engine) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return e.store.Get(ctx, jobID)
}

// QueuePosition is the 0-based index of the job in the pending lane,
// or -1 when it is not queued.
func (e *Engine) QueuePosition(jobID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, entry := range e.lane {
		if entry.jobID == jobID {
			return i
		}
	}
	return -1
}

func (e *Engine) QueueState(ctx context.Context) (*model.QueueState, error) {
	return e.store.CountByStatus(ctx)
}

func (e *Engine) push(jobID string, availableAt time.Time) {
	e.mu.Lock()
	e.lane = append(e.lane, laneEntry{jobID: jobID, availableAt: availableAt})
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// pop removes and returns the first due entry, preserving FIFO order
// among due jobs. When nothing is due it returns the wait until the
// earliest due-time, or ok=false with zero wait for an empty lane.
func (e *Engine) pop(now time.Time) (string, time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.lane) == 0 {
		return "", 0, false
	}
	for i, entry := range e.lane {
		if entry.availableAt.After(now) {
			continue
		}
		e.lane = append(e.lane[:i], e.lane[i+1:]...)
		return entry.jobID, 0, true
	}
	earliest := e.lane[0].availableAt
	for _, entry := range e.lane[1:] {
		if entry.availableAt.Before(earliest) {
			earliest = entry.availableAt
		}
	}
	return "", earliest.Sub(now), false
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)
	for {
		jobID, wait, ok := e.pop(time.Now())
		if !ok {
			if wait <= 0 {
				wait = time.Hour
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-e.wake:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}
		e.execute(ctx, jobID)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (e *Engine) execute(ctx context.Context, jobID string) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", jobID))
	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		logger.Error("load job failed", zap.Error(err))
		return
	}
	handler := e.handlers[job.Type]
	if handler == nil {
		logger.Error("no handler for job type", zap.String("type", job.Type))
		e.finalize(ctx, job, "", fmt.Errorf("no handler for job type %s", job.Type), false)
		return
	}

	job.Status = model.JobStatusProcessing
	job.Attempts++
	job.Progress = 0
	job.Stage = ""
	job.Mtime = timeutil.NowUnix()
	if err := e.store.Update(ctx, job); err != nil {
		logger.Error("mark job processing failed", zap.Error(err))
		return
	}
	logger.Info("job started", zap.String("type", job.Type), zap.Int("attempt", job.Attempts))

	// Monotonic progress guard for this attempt.
	lastProgress := 0
	onProgress := func(stage string, percent int) {
		if percent < lastProgress {
			percent = lastProgress
		}
		lastProgress = percent
		if err := e.store.UpdateProgress(ctx, job.ID, percent, stage, timeutil.NowUnix()); err != nil {
			logger.Warn("update job progress failed", zap.Error(err))
		}
	}

	start := time.Now()
	result, err := handler(ctx, job, onProgress)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job attempt failed", zap.Error(err), zap.Duration("duration", elapsed))
		retryable := !appErr.IsPermanent(err) && job.Attempts < job.MaxAttempts
		e.finalize(ctx, job, "", err, retryable)
		return
	}
	logger.Info("job completed", zap.Duration("duration", elapsed))
	e.finalize(ctx, job, result, nil, false)
}

func (e *Engine) finalize(ctx context.Context, job *model.Job, result string, execErr error, retry bool) {
	now := time.Now()
	job.Mtime = now.Unix()
	switch {
	case execErr == nil:
		job.Status = model.JobStatusCompleted
		job.Progress = 100
		job.Result = result
		job.Error = ""
	case retry:
		delay := e.backoffDelay(job.Attempts)
		job.Status = model.JobStatusQueued
		job.Error = execErr.Error()
		job.AvailableAt = now.Add(delay).Unix()
	default:
		job.Status = model.JobStatusFailed
		job.Error = execErr.Error()
	}
	if err := e.store.Update(ctx, job); err != nil {
		logutil.GetLogger(ctx).Error("persist job state failed",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if job.Status == model.JobStatusQueued {
		e.push(job.ID, time.Unix(job.AvailableAt, 0))
	}
}

// backoffDelay grows as base * 2^(attempts-1).
func (e *Engine) backoffDelay(attempts int) time.Duration {
	delay := e.backoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

func newJobID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
