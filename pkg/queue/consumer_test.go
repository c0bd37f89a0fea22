package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"web-dlp/constant"
	"web-dlp/entities"
	"web-dlp/repository"
)

const testURL = "https://youtu.be/dQw4w9WgXcQ"

type deps struct {
	repo repository.JobRepository
}

func start(t *testing.T, c Consumer[deps], d deps) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, d)
	}()
	t.Cleanup(cancel)
	return cancel, done
}

func TestConsumer_ProcessesEachJobOnce(t *testing.T) {
	repo := repository.NewRepo()
	var mu sync.Mutex
	seen := make(map[string]int)

	c := NewConsumer(repo, 4, 50*time.Millisecond, func(ctx context.Context, job entities.Job, d deps) error {
		mu.Lock()
		seen[job.ID]++
		mu.Unlock()
		return d.repo.Complete(ctx, job.ID, job.FileName())
	})
	cancel, done := start(t, c, deps{repo: repo})

	ctx := context.Background()
	var ids []string
	for range 20 {
		job, err := repo.Submit(ctx, testURL, constant.FormatAudio)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	require.Eventually(t, func() bool {
		return repo.Stats(ctx)[constant.JobStatusFinished] == len(ids)
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.Equal(t, 1, seen[id], id)
	}
}

func TestConsumer_WakesOnSubmit(t *testing.T) {
	repo := repository.NewRepo()
	handled := make(chan string, 1)

	// a long idle backoff means only the ready signal can wake the worker in time
	c := NewConsumer(repo, 1, time.Minute, func(ctx context.Context, job entities.Job, d deps) error {
		handled <- job.ID
		return nil
	})
	start(t, c, deps{repo: repo})
	time.Sleep(20 * time.Millisecond)

	job, err := repo.Submit(context.Background(), testURL, constant.FormatVideo)
	require.NoError(t, err)

	select {
	case id := <-handled:
		assert.Equal(t, job.ID, id)
	case <-time.After(time.Second):
		t.Fatal("worker was not woken by submit")
	}
}

func TestConsumer_SurvivesPanic(t *testing.T) {
	repo := repository.NewRepo()
	var calls atomic.Int32

	c := NewConsumer(repo, 1, 10*time.Millisecond, func(ctx context.Context, job entities.Job, d deps) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})
	start(t, c, deps{repo: repo})

	ctx := context.Background()
	_, err := repo.Submit(ctx, testURL, constant.FormatVideo)
	require.NoError(t, err)
	_, err = repo.Submit(ctx, testURL, constant.FormatVideo)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestConsumer_WaitsForInFlightJob(t *testing.T) {
	repo := repository.NewRepo()
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	c := NewConsumer(repo, 1, 10*time.Millisecond, func(ctx context.Context, job entities.Job, d deps) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})
	cancel, done := start(t, c, deps{repo: repo})

	_, err := repo.Submit(context.Background(), testURL, constant.FormatVideo)
	require.NoError(t, err)
	<-started
	cancel()

	select {
	case <-done:
		t.Fatal("consume returned with a job in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done
	assert.True(t, finished.Load())
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := NewConsumer[deps](repository.NewRepo(), 0, 0, nil).(*consumer[deps])
	assert.Equal(t, 1, c.numWorkers)
	assert.Equal(t, time.Second, c.maxIdle)
}
