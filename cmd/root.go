package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reflinkcopy/internal/logger"
)

var (
	verbose     bool
	dryRun      bool
	quiet       bool
	noReflink   bool
	showMetrics bool
	level       *zapcore.Level
	encoding    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reflinkcopy",
	Short: "Copy-on-write file cloning",
	Long: `reflinkcopy clones files and directory trees with the filesystem's
copy-on-write support and falls back to regular copies where there is none.

Supported filesystems:
- Linux: btrfs, XFS, bcachefs (FICLONE)
- macOS: APFS (clonefile)
- Windows: ReFS and Dev Drives (block cloning)`,
	Version:           "0.1.0",
	SilenceErrors:     true,
	PersistentPreRunE: initLogger,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if showMetrics {
			return dumpMetrics()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	defer logger.Sync()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output and debug logging")
	flags.BoolVar(&dryRun, "dry-run", false, "show what would be done without executing")
	flags.BoolVarP(&quiet, "quiet", "q", false, "hide spinners and stage summaries")
	flags.BoolVar(&noReflink, "no-reflink", false, "always use a regular copy (skip reflinks)")
	flags.BoolVar(&showMetrics, "metrics", false, "print prometheus metrics when the command finishes")

	level = zap.LevelFlag("log-level", zap.WarnLevel, "Log level")
	flags.AddGoFlag(flag.CommandLine.Lookup("log-level"))
	flags.StringVar(&encoding, "log-encoding", "console", "Log encoding (console | json)")

	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(compareCmd)
}

func initLogger(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true // silence usage when an error occurs after flags have been parsed

	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(*level)
	if verbose {
		config.Level.SetLevel(zap.DebugLevel)
	}
	config.Encoding = encoding

	if err := logger.Init(config); err != nil {
		return fmt.Errorf("could not initialize logger: %w", err)
	}
	return nil
}

func dumpMetrics() error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
