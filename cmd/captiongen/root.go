package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/captiongen/app"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "captiongen",
		Short:         "Generate SRT captions from MP3 speech",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	load := func() (*app.Config, error) { return app.Load(configFlag) }
	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newTranscribeCommand(load))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}
