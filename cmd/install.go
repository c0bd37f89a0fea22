package cmd

import (
	"os"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"web-dlp/config"
)

func installYtDlp(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "install-ytdlp",
		Short: "download the yt-dlp binary if it is not already available",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

			if config.Download.YtDlpPath != "" {
				logger.Info().Str("path", config.Download.YtDlpPath).Msg("download.ytdlp_path is set, using configured binary")
				return nil
			}

			resolved, err := ytdlp.Install(cmd.Context(), nil)
			if err != nil {
				logger.Error().Err(err).Msg("yt-dlp install failed")
				return err
			}
			logger.Info().Str("executable", resolved.Executable).Str("version", resolved.Version).Msg("yt-dlp ready")
			return nil
		},
	}
}
