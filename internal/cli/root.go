// Package cli provides the Cobra command structure for embedprep.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/embedprep/internal/config"
	"github.com/dgallion1/embedprep/internal/dataset"
	"github.com/dgallion1/embedprep/internal/generate"
	"github.com/dgallion1/embedprep/internal/logging"
	"github.com/dgallion1/embedprep/internal/storage"
	"github.com/dgallion1/embedprep/internal/telemetry"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// env is the state shared by every subcommand once the root pre-run has
// loaded the configuration.
type env struct {
	cfg config.Config
	log *slog.Logger
	out io.Writer
	err io.Writer

	// Overridable in tests.
	newGenerator func(ctx context.Context, cfg config.Config, log *slog.Logger) (dataset.Generator, func(), error)
	openBucket   func(ctx context.Context, bucket string, log *slog.Logger) (storage.Bucket, func(), error)
	hubBaseURL   string

	shutdown telemetry.Shutdown
}

func defaultEnv() *env {
	return &env{
		out:          os.Stdout,
		err:          os.Stderr,
		newGenerator: newGenerator,
		openBucket:   openGCS,
	}
}

// NewRootCommand creates the root embedprep command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	return newRootCommand(info, defaultEnv())
}

func newRootCommand(info BuildInfo, e *env) *cobra.Command {
	var debug bool
	var configPath string
	var logFormat string

	rootCmd := &cobra.Command{
		Use:   "embedprep",
		Short: "Prepare embedding training data from Markdown documents",
		Long: `embedprep splits documents into header-hierarchical sections and turns
them into anchor/positive/negative training examples with a text-generation
service.

A typical run chunks a directory of documents, generates pairs or triplets
from the chunk files, then validates, merges or pushes the results to the
Hugging Face Hub.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv(config.FileEnv)
			}
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-format") || cfg.LogFormat == "" {
				cfg.LogFormat = logFormat
			}
			if debug {
				cfg.LogLevel = "debug"
			}
			e.cfg = cfg
			e.log = logging.New(e.err, cfg.LogLevel, cfg.LogFormat)
			slog.SetDefault(e.log)

			shutdown, err := telemetry.Init(cmd.Context(), telemetry.Config{
				Enabled:        cfg.TelemetryEnabled,
				ServiceName:    "embedprep-cli",
				ServiceVersion: info.Version,
				Endpoint:       cfg.OTLPEndpoint,
				Logger:         e.log,
			})
			if err != nil {
				e.log.Warn("tracing disabled", logging.FieldError, err)
				return nil
			}
			e.shutdown = shutdown
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if e.shutdown != nil {
				return e.shutdown(context.WithoutCancel(cmd.Context()))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(e.out)
	rootCmd.SetErr(e.err)

	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "log output: text or json")

	// Add subcommands.
	rootCmd.AddCommand(newSplitCommand(e))
	rootCmd.AddCommand(newChunkCommand(e))
	rootCmd.AddCommand(newGenerateCommand(e, "pairs"))
	rootCmd.AddCommand(newGenerateCommand(e, "triplets"))
	rootCmd.AddCommand(newConvertCommand(e))
	rootCmd.AddCommand(newMergeCommand(e))
	rootCmd.AddCommand(newValidateCommand(e))
	rootCmd.AddCommand(newPushCommand(e))
	rootCmd.AddCommand(newVersionCommand(info, e))

	return rootCmd
}

func newGenerator(ctx context.Context, cfg config.Config, log *slog.Logger) (dataset.Generator, func(), error) {
	c, err := generate.FromConfig(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}

func openGCS(ctx context.Context, bucket string, log *slog.Logger) (storage.Bucket, func(), error) {
	b, err := storage.NewGCS(ctx, bucket, log)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { b.Close() }, nil
}
