package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/captiongen/app"
	"github.com/kbukum/captiongen/bootstrap"
	"github.com/kbukum/captiongen/captions"
	"github.com/kbukum/captiongen/logger"
)

func newTranscribeCommand(load func() (*app.Config, error)) *cobra.Command {
	var output string
	var noTransliterate bool

	cmd := &cobra.Command{
		Use:   "transcribe <file.mp3>",
		Short: "Generate captions for one MP3 file without the HTTP service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if !captions.IsUploadName(src) {
				return fmt.Errorf("%s: only %s files are accepted", src, captions.UploadExt)
			}
			if _, err := os.Stat(src); err != nil {
				return err
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			if noTransliterate {
				cfg.Transliteration.Enabled = false
			}
			scratch, err := isolate(cfg)
			if err != nil {
				return err
			}
			defer os.RemoveAll(scratch)

			svc, err := app.New(cfg, bootstrap.WithoutSummary())
			if err != nil {
				return err
			}
			res, err := svc.Transcribe(cmd.Context(), src, !noTransliterate)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), res.SRT)
				return err
			}
			if err := os.WriteFile(output, []byte(res.SRT), 0o644); err != nil {
				return err
			}
			logger.Get(cfg.Name).Info("Captions written", map[string]interface{}{
				"path":     output,
				"blocks":   len(res.Blocks),
				"audio":    res.AudioDuration.Round(time.Second).String(),
				"elapsed":  res.Elapsed.Round(time.Millisecond).String(),
				"provider": res.Provider,
			})
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the SRT here instead of stdout")
	cmd.Flags().BoolVar(&noTransliterate, "no-transliterate", false, "Keep the recognized Devanagari text")
	return cmd
}

// isolate moves storage and the job ledger into a scratch directory, leaving
// the service's locked storage root alone, and sends logs to stderr. It
// returns the scratch directory.
func isolate(cfg *app.Config) (string, error) {
	dir, err := os.MkdirTemp("", "captiongen-")
	if err != nil {
		return "", err
	}
	cfg.Storage.BasePath = filepath.Join(dir, "data")
	cfg.Jobs.Path = ":memory:"
	cfg.Jobs.AutoMigrate = true
	if strings.EqualFold(cfg.Logging.Output, "stdout") || cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	return dir, nil
}
