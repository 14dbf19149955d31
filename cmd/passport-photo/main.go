package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	errorsGo "github.com/go-errors/errors"
	"github.com/spf13/cobra"

	passportphoto "github.com/menta2k/passport-photo"
	"github.com/menta2k/passport-photo/internal/config"
	"github.com/menta2k/passport-photo/internal/log"
)

// exit codes outside of the pipeline statuses
const (
	exitUsage = 2
	exitSetup = 1
)

type options struct {
	configPath string
	logLevel   string
	debug      bool

	stdout io.Writer
	stderr io.Writer
	// code is set by the command that ran
	code int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	opts := &options{stdout: stdout, stderr: stderr}

	defer func() {
		if r := recover(); r != nil {
			err := errorsGo.Wrap(r, 2)
			if opts.debug {
				fmt.Fprintln(stderr, err.ErrorStack())
			}
			fmt.Fprintf(stderr, "Error occurred during processing: %v\n", err)
			code = exitSetup
		}
		log.Close()
	}()

	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		if opts.code == 0 {
			return exitUsage
		}
	}
	return opts.code
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "passport-photo <input> <output>",
		Short:         "Generate a passport photo from a portrait",
		Long:          "Removes the background, centers the largest face and writes a passport photo of the configured size.\nThe input is a file path or an http(s) URL; the output extension selects the format.",
		Args:          cobra.ExactArgs(2),
		Version:       passportphoto.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				opts.code = exitSetup
				return err
			}

			pipeline, err := passportphoto.NewFromConfig(cfg)
			if err != nil {
				opts.code = exitSetup
				return err
			}
			defer pipeline.Close()

			result := pipeline.Process(cmd.Context(), args[0], args[1])
			fmt.Fprintln(opts.stdout, result.Message())
			if result.DebugOutput != "" {
				fmt.Fprintln(opts.stdout, "Debug overlay:", result.DebugOutput)
			}
			opts.code = result.Status.ExitCode()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $"+config.EnvConfigPath+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "write a debug overlay and print stack traces")

	root.AddCommand(newServeCmd(opts), newConfigCmd(opts), newCheckCmd(opts))
	return root
}

// load reads the configuration, applies the flags and initializes logging
func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.debug {
		cfg.Output.Debug = true
	}

	err = log.Init(log.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Output:     o.stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}
