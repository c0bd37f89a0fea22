package cmd

import (
	"github.com/spf13/cobra"
	"web-dlp/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "web-dlp",
		Short:         "HTTP front end for yt-dlp downloads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(fetch(config))
	rootCmd.AddCommand(installYtDlp(config))
	return rootCmd
}
