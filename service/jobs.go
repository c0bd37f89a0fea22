package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"web-dlp/constant"
	"web-dlp/dto"
	"web-dlp/entities"
	"web-dlp/pkg/storage"
	"web-dlp/repository"
)

var (
	ErrNotReady      = errors.New("job result not ready")
	ErrResultMissing = errors.New("job result missing")
)

// JobService is what the HTTP layer sees of the job table.
type JobService interface {
	Submit(ctx context.Context, url string, format string) (entities.Job, error)
	Get(ctx context.Context, id string) (entities.Job, error)
	// OpenResult returns the job alongside its artifact. For jobs that are
	// not finished it returns the job and ErrNotReady.
	OpenResult(ctx context.Context, id string) (entities.Job, *storage.Object, error)
	Stats(ctx context.Context) dto.StatsResponse
}

type jobService struct {
	repo  repository.JobRepository
	store storage.Store
}

func NewJobService(repo repository.JobRepository, store storage.Store) JobService {
	return &jobService{repo: repo, store: store}
}

func (s *jobService) Submit(ctx context.Context, url string, format string) (entities.Job, error) {
	if err := ValidateURL(url); err != nil {
		return entities.Job{}, err
	}
	f, err := ParseFormat(format)
	if err != nil {
		return entities.Job{}, err
	}

	job, err := s.repo.Submit(ctx, url, f)
	if err != nil {
		return entities.Job{}, err
	}
	zerolog.Ctx(ctx).Info().Str("job_id", job.ID).Str("url", url).Str("format", f.String()).Msg("job queued")
	return job, nil
}

func (s *jobService) Get(ctx context.Context, id string) (entities.Job, error) {
	return s.repo.FindJobById(ctx, id)
}

func (s *jobService) OpenResult(ctx context.Context, id string) (entities.Job, *storage.Object, error) {
	job, err := s.repo.FindJobById(ctx, id)
	if err != nil {
		return entities.Job{}, nil, err
	}
	if job.Status != constant.JobStatusFinished {
		return job, nil, ErrNotReady
	}

	obj, err := s.store.Open(ctx, job.ResultPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			zerolog.Ctx(ctx).Error().Str("job_id", id).Str("ref", job.ResultPath).Msg("result file missing")
			return job, nil, ErrResultMissing
		}
		return job, nil, errors.Join(ErrStorage, err)
	}

	if err := s.repo.MarkRetrieved(ctx, id); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("job_id", id).Msg("retrieval not recorded")
	}
	return job, obj, nil
}

func (s *jobService) Stats(ctx context.Context) dto.StatsResponse {
	stats := s.repo.Stats(ctx)
	return dto.StatsResponse{
		Queued:     stats[constant.JobStatusQueued],
		Processing: stats[constant.JobStatusProcessing],
		Finished:   stats[constant.JobStatusFinished],
		Error:      stats[constant.JobStatusError],
	}
}
