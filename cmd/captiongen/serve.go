package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/captiongen/app"
	"github.com/kbukum/captiongen/version"
)

func newServeCommand(load func() (*app.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the caption HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			stampVersion(cfg)
			svc, err := app.New(cfg)
			if err != nil {
				return err
			}
			return svc.Serve(cmd.Context())
		},
	}
}

// stampVersion reports the build version unless the config pins one.
func stampVersion(cfg *app.Config) {
	if cfg.Version == "" {
		cfg.Version = version.Get().Short()
	}
}
