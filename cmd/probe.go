package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reflinkcopy/internal/key"
	"reflinkcopy/internal/logger"
	"reflinkcopy/pkg/reflink"
)

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe [dir]",
	Short: "Check whether a directory supports reflinks",
	Long: `Report the filesystem holding dir (the current directory by default) and
whether files in it can be reflinked. The check clones a small temporary file
and removes it again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: probeDir,
}

func probeDir(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	fsType, err := reflink.FilesystemType(dir)
	if err != nil {
		if !reflink.IsUnsupported(err) {
			return err
		}
		fsType = "unknown"
	}

	if dryRun {
		fmt.Printf("Would probe %s (%s) for reflink support\n", dir, fsType)
		return nil
	}

	supported, err := reflink.IsSupported(dir)
	if err != nil {
		return fmt.Errorf("failed to check reflink support: %w", err)
	}
	logger.Debug(cmd.Context(), "probed directory",
		key.Path.Field(dir),
		key.Filesystem.Field(fsType),
		key.Supported.Field(supported),
	)

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("Directory:  %s\n", dir)
	fmt.Printf("Filesystem: %s\n", fsType)
	if supported {
		fmt.Printf("Reflinks:   %s\n", green("supported"))
	} else {
		fmt.Printf("Reflinks:   %s (files will be copied)\n", yellow("not supported"))
	}
	return nil
}
