package main

import (
	"fmt"

	"github.com/spf13/cobra"

	passportphoto "github.com/menta2k/passport-photo"
	"github.com/menta2k/passport-photo/pkg/detection"
)

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the configured face detector is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.code = exitSetup

			cfg, err := opts.load()
			if err != nil {
				return err
			}

			fmt.Fprintln(opts.stdout, "Detector backend:", cfg.Detector.Backend)
			fmt.Fprintln(opts.stdout, "OpenCV haar support:", detection.HaarAvailable)

			answer, err := passportphoto.CheckDetector(cmd.Context(), cfg.Detector)
			if err != nil {
				return fmt.Errorf("detector check failed: %w", err)
			}
			fmt.Fprintln(opts.stdout, "Detector OK:", answer)
			opts.code = 0
			return nil
		},
	}
}
