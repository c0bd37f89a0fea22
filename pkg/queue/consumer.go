package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"web-dlp/entities"
)

// Source hands out queued jobs. Ready must be read before ClaimNext so a
// submit landing between the two still wakes the caller.
type Source interface {
	ClaimNext(ctx context.Context) (entities.Job, bool)
	Ready() <-chan struct{}
}

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type consumer[T any] struct {
	source     Source
	handler    func(ctx context.Context, job entities.Job, dependencies T) error
	numWorkers int
	maxIdle    time.Duration
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	zerolog.Ctx(ctx).Info().Int("workers", c.numWorkers).Msg("starting job workers")

	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			c.work(ctx, workerId, dependencies)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	zerolog.Ctx(ctx).Info().Msg("job workers stopped")
	return ctx.Err()
}

func (c consumer[T]) work(ctx context.Context, workerId int, dependencies T) {
	logger := zerolog.Ctx(ctx).With().Int("worker", workerId).Logger()
	ctx = logger.WithContext(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = c.maxIdle

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		ready := c.source.Ready()
		job, ok := c.source.ClaimNext(ctx)
		if ok {
			bo.Reset()
			c.handle(ctx, job, dependencies)
			continue
		}

		timer.Reset(bo.NextBackOff())
		select {
		case <-ctx.Done():
			return
		case <-ready:
		case <-timer.C:
		}
	}
}

// handle keeps a panicking job from taking its worker down.
func (c consumer[T]) handle(ctx context.Context, job entities.Job, dependencies T) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Str("job_id", job.ID).Str("panic", fmt.Sprint(r)).Msg("job handler panicked")
		}
	}()

	if err := c.handler(ctx, job, dependencies); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", job.ID).Msg("failed to handle job")
	}
}

func NewConsumer[T any](
	source Source,
	numWorkers int,
	maxIdle time.Duration,
	handler func(ctx context.Context, job entities.Job, dependencies T) error,
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if maxIdle <= 0 {
		maxIdle = time.Second
	}
	return &consumer[T]{
		source:     source,
		handler:    handler,
		numWorkers: numWorkers,
		maxIdle:    maxIdle,
	}
}
