package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"web-dlp/constant"
	"web-dlp/dto"
	"web-dlp/entities"
	"web-dlp/pkg/rabbitmq"
	"web-dlp/pkg/storage"
	"web-dlp/repository"
)

var (
	ErrDownload = errors.New("download failure")
	ErrTimeout  = errors.New("download timeout")
	ErrStorage  = errors.New("storage failure")
	ErrInternal = errors.New("internal error")
)

// Progress milestones reported while a job is processing.
const (
	progressClaimed    = 10
	progressStarted    = 30
	progressDownloaded = 90
)

// Service runs one claimed job to a terminal state.
type Service interface {
	Process(ctx context.Context, job entities.Job) error
}

type Options struct {
	Timeout  time.Duration
	Attempts int
	// RetryInterval is the initial wait between download attempts.
	RetryInterval time.Duration
}

type service struct {
	repo       repository.JobRepository
	store      storage.Store
	downloader Downloader
	publisher  rabbitmq.Publisher
	opts       Options
	now        func() time.Time
}

func NewService(repo repository.JobRepository, store storage.Store, downloader Downloader, publisher rabbitmq.Publisher, opts Options) Service {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}
	if publisher == nil {
		publisher = rabbitmq.NopPublisher{}
	}
	return &service{
		repo:       repo,
		store:      store,
		downloader: downloader,
		publisher:  publisher,
		opts:       opts,
		now:        time.Now,
	}
}

// Process never returns the raw download error to clients: failures are
// recorded on the job with a fixed message and returned for logging.
func (s *service) Process(ctx context.Context, job entities.Job) (err error) {
	logger := zerolog.Ctx(ctx).With().Str("job_id", job.ID).Str("format", job.Format.String()).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Str("url", job.URL).Msg("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("job panicked")
			err = fmt.Errorf("%w: panic: %v", ErrInternal, r)
		}
		if err != nil {
			s.discardPartial(ctx, job.ID)
			s.fail(context.WithoutCancel(ctx), job, err)
		}
	}()

	s.progress(ctx, job.ID, progressClaimed)

	path, err := s.download(jobCtx, job)
	if err != nil {
		return err
	}
	s.progress(ctx, job.ID, progressDownloaded)

	ref, err := s.store.Put(jobCtx, job.ID, path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to store result")
		return errors.Join(ErrStorage, err)
	}

	if err := s.repo.Complete(ctx, job.ID, ref); err != nil {
		// reclaimed while we were downloading; nobody can fetch the result any more
		logger.Warn().Err(err).Msg("job vanished before completion, discarding result")
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), ref); rmErr != nil {
			logger.Error().Err(rmErr).Str("ref", ref).Msg("failed to remove discarded result")
		}
		return nil
	}

	logger.Info().Str("result", ref).Msg("job completed")
	s.publish(ctx, dto.JobEvent{JobId: job.ID, Status: constant.JobStatusFinished, Format: job.Format, OccurredAt: s.now()})
	return nil
}

func (s *service) download(ctx context.Context, job entities.Job) (string, error) {
	s.progress(ctx, job.ID, progressStarted)

	req := DownloadRequest{
		JobID:     job.ID,
		URL:       job.URL,
		Format:    job.Format,
		OutputDir: s.store.WorkDir(),
	}
	onProgress := func(p int) {
		s.progress(ctx, job.ID, progressStarted+p*(progressDownloaded-progressStarted)/100)
	}

	attempt := 0
	operation := func() (string, error) {
		attempt++
		path, err := s.downloader.Download(ctx, req, onProgress)
		if err == nil {
			return path, nil
		}
		zerolog.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("download attempt failed")
		if ctx.Err() != nil || errors.Is(err, ErrFileNotCreated) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.RetryInterval
	bo.MaxInterval = 10 * time.Second
	path, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(s.opts.Attempts)))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Join(ErrTimeout, err)
		}
		return "", errors.Join(ErrDownload, err)
	}
	return path, nil
}

func (s *service) fail(ctx context.Context, job entities.Job, cause error) {
	logger := zerolog.Ctx(ctx)
	logger.Error().Err(cause).Msg("job failed")

	message := s.failureMessage(cause)
	if err := s.repo.Fail(ctx, job.ID, message); err != nil {
		logger.Warn().Err(err).Msg("failed to record job failure")
		return
	}
	s.publish(ctx, dto.JobEvent{JobId: job.ID, Status: constant.JobStatusError, Format: job.Format, Error: message, OccurredAt: s.now()})
}

// failureMessage is the client-visible reason for a failed job.
func (s *service) failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return fmt.Sprintf("download timeout (%s)", s.opts.Timeout)
	case errors.Is(err, ErrFileNotCreated):
		return "file not created"
	case errors.Is(err, context.Canceled):
		return "download cancelled"
	case errors.Is(err, ErrDownload):
		return "download failed"
	case errors.Is(err, ErrStorage):
		return "storage failure"
	default:
		return "internal error"
	}
}

// discardPartial removes whatever a failed attempt left in the work directory.
func (s *service) discardPartial(ctx context.Context, id string) {
	matches, err := filepath.Glob(filepath.Join(s.store.WorkDir(), id+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", m).Msg("failed to remove partial download")
		}
	}
}

func (s *service) progress(ctx context.Context, id string, p int) {
	if err := s.repo.UpdateProgress(ctx, id, p); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Int("progress", p).Msg("progress not recorded")
	}
}

func (s *service) publish(ctx context.Context, event dto.JobEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("job event not published")
	}
}
