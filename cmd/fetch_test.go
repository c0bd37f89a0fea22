package cmd

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"web-dlp/config"
	"web-dlp/handler"
	"web-dlp/pkg/ratelimit"
	"web-dlp/pkg/storage"
	"web-dlp/repository"
	"web-dlp/service"
)

func startServer(t *testing.T) (string, repository.JobRepository, *storage.LocalStorage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := repository.NewRepo()

	r := gin.New()
	require.NoError(t, handler.RegisterRoutes(r, handler.HttpDependencies{
		JobService: service.NewJobService(repo, store),
		Limiter:    ratelimit.NewLimiter(5, time.Minute),
	}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL, repo, store
}

func TestRunFetch(t *testing.T) {
	addr, repo, store := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for ctx.Err() == nil {
			job, ok := repo.ClaimNext(ctx)
			if !ok {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			_ = os.WriteFile(filepath.Join(store.WorkDir(), job.FileName()), []byte("song"), 0o644)
			_ = repo.Complete(ctx, job.ID, job.FileName())
			return
		}
	}()

	out := t.TempDir()
	err := runFetch(ctx, fetchOptions{
		url:      "https://youtu.be/dQw4w9WgXcQ",
		format:   "mp3",
		server:   addr,
		out:      out,
		interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(out, "*.mp3"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	body, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "song", string(body))
}

func TestRunFetch_JobFails(t *testing.T) {
	addr, repo, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for ctx.Err() == nil {
			job, ok := repo.ClaimNext(ctx)
			if !ok {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			_ = repo.Fail(ctx, job.ID, "download failed")
			return
		}
	}()

	err := runFetch(ctx, fetchOptions{
		url:      "https://youtu.be/dQw4w9WgXcQ",
		format:   "mp4",
		server:   addr,
		out:      t.TempDir(),
		interval: 10 * time.Millisecond,
	})
	assert.ErrorContains(t, err, "download failed")
}

func TestRoot_Commands(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.HttpPort = "8000"

	root := Root(cfg)
	for _, name := range []string{"server", "fetch", "install-ytdlp"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	fetchCmd, _, _ := root.Find([]string{"fetch"})
	assert.Equal(t, "http://localhost:8000", fetchCmd.Flag("server").DefValue)
}
