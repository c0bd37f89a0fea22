package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
	"web-dlp/config"
	"web-dlp/constant"
)

var ErrFileNotCreated = errors.New("file not created")

type DownloadRequest struct {
	JobID     string
	URL       string
	Format    constant.Format
	OutputDir string
}

// ProgressFunc receives download completion in percent.
type ProgressFunc func(percent int)

type Downloader interface {
	Download(ctx context.Context, req DownloadRequest, progress ProgressFunc) (string, error)
}

type ytDlpDownloader struct {
	audioQuality string
	maxHeight    int
	executable   string
}

func NewYtDlpDownloader(cfg config.Download) Downloader {
	return &ytDlpDownloader{
		audioQuality: cfg.AudioQuality,
		maxHeight:    cfg.MaxHeight,
		executable:   cfg.YtDlpPath,
	}
}

func (d *ytDlpDownloader) Download(ctx context.Context, req DownloadRequest, progress ProgressFunc) (string, error) {
	dl := d.command(req)
	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		if p, ok := percent(update.DownloadedBytes, update.TotalBytes); ok {
			progress(p)
		}
	})

	zerolog.Ctx(ctx).Info().Str("url", req.URL).Msg("running yt-dlp")
	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		if result != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int("exit_code", result.ExitCode).Str("stderr", result.Stderr).Msg("yt-dlp failed")
		}
		return "", err
	}

	return findOutput(req)
}

func (d *ytDlpDownloader) command(req DownloadRequest) *ytdlp.Command {
	dl := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		NoMtime().
		ForceOverwrites().
		Output(filepath.Join(req.OutputDir, req.JobID+".%(ext)s"))

	if d.executable != "" {
		dl.SetExecutable(d.executable)
	}

	if req.Format == constant.FormatAudio {
		return dl.ExtractAudio().
			AudioFormat("mp3").
			AudioQuality(d.audioQuality)
	}

	return dl.Format(videoSelector(d.maxHeight)).
		MergeOutputFormat("mp4").
		RemuxVideo("mp4")
}

func videoSelector(maxHeight int) string {
	return fmt.Sprintf("bestvideo[height<=%[1]d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%[1]d][ext=mp4]/best", maxHeight)
}

// findOutput returns the artifact produced for req, ignoring partial files.
func findOutput(req DownloadRequest) (string, error) {
	expected := filepath.Join(req.OutputDir, req.JobID+req.Format.Extension())
	if info, err := os.Stat(expected); err == nil && !info.IsDir() {
		return expected, nil
	}

	matches, err := filepath.Glob(filepath.Join(req.OutputDir, req.JobID+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", ErrFileNotCreated
}

func percent(done, total int) (int, bool) {
	if total <= 0 {
		return 0, false
	}
	return min(done*100/total, 100), true
}
