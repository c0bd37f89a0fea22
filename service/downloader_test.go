package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"web-dlp/config"
	"web-dlp/constant"
)

func TestFindOutput(t *testing.T) {
	dir := t.TempDir()
	req := DownloadRequest{JobID: "job-1", Format: constant.FormatVideo, OutputDir: dir}

	_, err := findOutput(req)
	assert.ErrorIs(t, err, ErrFileNotCreated)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-1.mp4.part"), nil, 0o644))
	_, err = findOutput(req)
	assert.ErrorIs(t, err, ErrFileNotCreated)

	// yt-dlp may keep the source container when remuxing is skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-1.mkv"), nil, 0o644))
	path, err := findOutput(req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job-1.mkv"), path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-1.mp4"), nil, 0o644))
	path, err = findOutput(req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job-1.mp4"), path)
}

func TestPercent(t *testing.T) {
	_, ok := percent(10, 0)
	assert.False(t, ok)

	p, ok := percent(50, 200)
	assert.True(t, ok)
	assert.Equal(t, 25, p)

	p, _ = percent(300, 200)
	assert.Equal(t, 100, p)
}

func TestVideoSelector(t *testing.T) {
	assert.Equal(t,
		"bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best",
		videoSelector(720))
}

func TestYtDlpCommand(t *testing.T) {
	d := NewYtDlpDownloader(config.Download{AudioQuality: "192K", MaxHeight: 1080}).(*ytDlpDownloader)

	audio := d.command(DownloadRequest{JobID: "a", Format: constant.FormatAudio, OutputDir: "/tmp/x"})
	assert.NotNil(t, audio)

	video := d.command(DownloadRequest{JobID: "v", Format: constant.FormatVideo, OutputDir: "/tmp/x"})
	assert.NotNil(t, video)
}
