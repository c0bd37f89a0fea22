package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"web-dlp/client"
	"web-dlp/config"
	"web-dlp/constant"
)

type fetchOptions struct {
	url      string
	format   string
	server   string
	out      string
	interval time.Duration
	timeout  time.Duration
}

func fetch(config *config.Config) *cobra.Command {
	opts := fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "submit a URL to a running server, wait for it and save the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, opts.timeout)
			defer cancelTimeout()

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			return runFetch(logger.WithContext(ctx), opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "YouTube URL to download")
	cmd.Flags().StringVar(&opts.format, "format", constant.DefaultFormat.String(), "output format, mp3 or mp4")
	cmd.Flags().StringVar(&opts.server, "server", fmt.Sprintf("http://localhost:%s", config.Server.HttpPort), "web-dlp server address")
	cmd.Flags().StringVar(&opts.out, "out", ".", "output file or directory")
	cmd.Flags().DurationVar(&opts.interval, "interval", 2*time.Second, "status poll interval")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", config.Download.Timeout+time.Minute, "give up after this long")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func runFetch(ctx context.Context, opts fetchOptions) error {
	logger := zerolog.Ctx(ctx)
	c := client.New(opts.server)

	created, err := c.Submit(ctx, opts.url, constant.Format(opts.format))
	if err != nil {
		if client.IsRateLimited(err) {
			return errors.New("rate limited by server, try again in a minute")
		}
		return err
	}
	logger.Info().Str("job_id", created.JobId).Msg("job queued")

	status, err := c.Wait(ctx, created.JobId, opts.interval)
	if err != nil {
		return err
	}
	if status.Status == constant.JobStatusError {
		return fmt.Errorf("job %s failed: %s", created.JobId, status.Error)
	}

	path := opts.out
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, created.JobId+constant.Format(opts.format).Extension())
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := c.Result(ctx, created.JobId, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}

	logger.Info().Str("path", path).Int64("bytes", n).Msg("saved result")
	return nil
}
