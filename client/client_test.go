package client

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"web-dlp/constant"
	"web-dlp/handler"
	"web-dlp/pkg/ratelimit"
	"web-dlp/pkg/storage"
	"web-dlp/repository"
	"web-dlp/service"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type env struct {
	client *Client
	repo   repository.JobRepository
	store  *storage.LocalStorage
}

func newEnv(t *testing.T, quota int) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := repository.NewRepo()

	r := gin.New()
	require.NoError(t, handler.RegisterRoutes(r, handler.HttpDependencies{
		JobService: service.NewJobService(repo, store),
		Limiter:    ratelimit.NewLimiter(quota, time.Minute),
	}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &env{client: New(srv.URL + "/"), repo: repo, store: store}
}

// complete plays the worker's part for the oldest queued job.
func (e *env) complete(t *testing.T, content string) {
	t.Helper()
	ctx := context.Background()
	job, ok := e.repo.ClaimNext(ctx)
	require.True(t, ok)
	require.NoError(t, os.WriteFile(filepath.Join(e.store.WorkDir(), job.FileName()), []byte(content), 0o644))
	require.NoError(t, e.repo.Complete(ctx, job.ID, job.FileName()))
}

func TestClient_RoundTrip(t *testing.T) {
	e := newEnv(t, 5)
	ctx := context.Background()

	require.NoError(t, e.client.Health(ctx))

	created, err := e.client.Submit(ctx, testURL, constant.FormatAudio)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusQueued, created.Status)

	var buf bytes.Buffer
	_, err = e.client.Result(ctx, created.JobId, &buf)
	assert.True(t, IsNotReady(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, constant.JobStatusQueued, apiErr.JobStatus)

	e.complete(t, "mp3 bytes")

	status, err := e.client.Wait(ctx, created.JobId, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)

	n, err := e.client.Result(ctx, created.JobId, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, "mp3 bytes", buf.String())

	stats, err := e.client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Finished)
}

func TestClient_Errors(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()

	_, err := e.client.Status(ctx, "missing")
	assert.True(t, IsNotFound(err))

	_, err = e.client.Submit(ctx, testURL, "")
	require.NoError(t, err)

	_, err = e.client.Submit(ctx, testURL, "")
	assert.True(t, IsRateLimited(err))
	assert.EqualError(t, err, "web-dlp: http 429: rate_limited")
}

func TestClient_WaitHonoursContext(t *testing.T) {
	e := newEnv(t, 5)

	created, err := e.client.Submit(context.Background(), testURL, constant.FormatVideo)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	status, err := e.client.Wait(ctx, created.JobId, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, constant.JobStatusQueued, status.Status)
}
