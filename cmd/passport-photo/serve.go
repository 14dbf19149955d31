package main

import (
	"fmt"

	"github.com/spf13/cobra"

	passportphoto "github.com/menta2k/passport-photo"
	"github.com/menta2k/passport-photo/internal/config"
	"github.com/menta2k/passport-photo/internal/server"
	"github.com/menta2k/passport-photo/internal/utils"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.code = exitSetup

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.ListenAddr = addr
			}

			pipeline, err := passportphoto.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			srv, err := server.New(pipeline, cfg.Server)
			if err != nil {
				return err
			}
			if err := srv.Run(cmd.Context()); err != nil {
				return err
			}
			opts.code = 0
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $"+config.EnvListenAddr+", $"+config.EnvPort+" or :4000)")
	return cmd
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.code = exitSetup

			path := opts.configPath
			if path == "" {
				path = config.GetConfigPath()
			}
			if utils.FileExists(path) && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := config.Default().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintln(opts.stdout, "Wrote", path)
			opts.code = 0
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
