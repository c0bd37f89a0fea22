package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"web-dlp/constant"
	"web-dlp/entities"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

type JobRepository interface {
	Submit(ctx context.Context, url string, format constant.Format) (entities.Job, error)
	FindJobById(ctx context.Context, id string) (entities.Job, error)
	ClaimNext(ctx context.Context) (entities.Job, bool)
	UpdateProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id string, resultPath string) error
	Fail(ctx context.Context, id string, message string) error
	MarkRetrieved(ctx context.Context, id string) error
	Delete(ctx context.Context, id string)
	List(ctx context.Context) []entities.Job
	Stats(ctx context.Context) map[constant.JobStatus]int
	Ready() <-chan struct{}
}

type Option func(*repo)

// WithClock replaces time.Now as the source of job timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *repo) {
		r.now = now
	}
}

type repo struct {
	mu    sync.Mutex
	jobs  map[string]*entities.Job
	queue []string
	ready chan struct{}
	now   func() time.Time
}

func NewRepo(opts ...Option) JobRepository {
	r := &repo{
		jobs:  make(map[string]*entities.Job),
		ready: make(chan struct{}),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repo) Submit(ctx context.Context, url string, format constant.Format) (entities.Job, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return entities.Job{}, err
	}

	job := &entities.Job{
		ID:        id.String(),
		URL:       url,
		Format:    format,
		Status:    constant.JobStatusQueued,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.queue = append(r.queue, job.ID)
	// wake every idle worker
	close(r.ready)
	r.ready = make(chan struct{})
	r.mu.Unlock()

	return *job, nil
}

func (r *repo) FindJobById(ctx context.Context, id string) (entities.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return entities.Job{}, ErrNotFound
	}
	return *job, nil
}

func (r *repo) ClaimNext(ctx context.Context) (entities.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.queue) > 0 {
		id := r.queue[0]
		r.queue[0] = ""
		r.queue = r.queue[1:]

		job, ok := r.jobs[id]
		if !ok || job.Status != constant.JobStatusQueued {
			continue
		}

		now := r.now()
		job.Status = constant.JobStatusProcessing
		job.StartedAt = &now
		return *job, true
	}
	return entities.Job{}, false
}

func (r *repo) UpdateProgress(ctx context.Context, id string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.processing(id)
	if err != nil {
		return err
	}

	progress = min(max(progress, 0), 100)
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

func (r *repo) Complete(ctx context.Context, id string, resultPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.processing(id)
	if err != nil {
		return err
	}

	now := r.now()
	job.Status = constant.JobStatusFinished
	job.Progress = 100
	job.ResultPath = resultPath
	job.FinishedAt = &now
	return nil
}

func (r *repo) Fail(ctx context.Context, id string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.processing(id)
	if err != nil {
		return err
	}

	now := r.now()
	job.Status = constant.JobStatusError
	job.Progress = 0
	job.ErrorMessage = message
	job.FinishedAt = &now
	return nil
}

func (r *repo) MarkRetrieved(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != constant.JobStatusFinished {
		return ErrInvalidTransition
	}
	if job.RetrievedAt == nil {
		now := r.now()
		job.RetrievedAt = &now
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

func (r *repo) List(ctx context.Context) []entities.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]entities.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

func (r *repo) Stats(ctx context.Context) map[constant.JobStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := map[constant.JobStatus]int{
		constant.JobStatusQueued:     0,
		constant.JobStatusProcessing: 0,
		constant.JobStatusFinished:   0,
		constant.JobStatusError:      0,
	}
	for _, job := range r.jobs {
		stats[job.Status]++
	}
	return stats
}

func (r *repo) Ready() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// processing must be called with r.mu held.
func (r *repo) processing(id string) (*entities.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if job.Status != constant.JobStatusProcessing {
		return nil, ErrInvalidTransition
	}
	return job, nil
}
