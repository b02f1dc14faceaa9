package cmd

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reflinkcopy/internal/key"
	"reflinkcopy/internal/logger"
	"reflinkcopy/pkg/progress"
	"reflinkcopy/pkg/reflink"
)

var (
	treeExclude   []string
	treeGitignore bool
	treeWorkers   int
	treeAlways    bool
	treeProgress  bool
)

// treeCmd represents the tree command
var treeCmd = &cobra.Command{
	Use:   "tree <src> <dst>",
	Short: "Clone a directory tree",
	Long: `Recreate the directory tree at src under dst, reflinking every regular
file. Files that cannot be reflinked are copied unless --always is given.

Directories keep their permissions and symlinks keep their targets. Paths can
be left out with gitignore-style --exclude patterns or the .gitignore files of
the source tree. dst must not exist.`,
	Args: cobra.ExactArgs(2),
	RunE: cloneTree,
}

func init() {
	treeCmd.Flags().StringSliceVarP(&treeExclude, "exclude", "x", nil, "gitignore-style pattern to leave out (repeatable)")
	treeCmd.Flags().BoolVar(&treeGitignore, "gitignore", false, "also leave out paths ignored by the source's .gitignore files")
	treeCmd.Flags().IntVarP(&treeWorkers, "workers", "w", runtime.NumCPU(), "number of files cloned concurrently")
	treeCmd.Flags().BoolVar(&treeAlways, "always", false, "fail instead of copying when reflinks are unsupported")
	treeCmd.Flags().BoolVar(&treeProgress, "progress", false, "show a spinner even when stdout is not a terminal")
}

func cloneTree(cmd *cobra.Command, args []string) error {
	src, dst := args[0], args[1]

	if treeAlways && noReflink {
		return fmt.Errorf("--always and --no-reflink cannot be used together")
	}

	if verbose {
		fmt.Printf("Source: %s\n", src)
		fmt.Printf("Destination: %s\n", dst)
		fmt.Printf("Workers: %d\n", treeWorkers)
		fmt.Printf("Reflink enabled: %t\n", !noReflink)
	}

	if dryRun {
		fmt.Printf("Would clone tree %s to %s\n", src, dst)
		return nil
	}

	tracker := progress.New(treeProgress)
	tracker.SetQuiet(quiet)
	tracker.StartStage("Cloning tree")

	stats, err := reflink.CloneTree(cmd.Context(), src, dst, reflink.TreeOptions{
		Workers:      treeWorkers,
		NoFallback:   treeAlways,
		ForceCopy:    noReflink,
		Exclude:      treeExclude,
		UseGitignore: treeGitignore,
		Progress: func(s reflink.TreeStats) {
			tracker.UpdateStage(fmt.Sprintf("%d files", s.Files))
		},
	})
	if err != nil {
		tracker.Error(err)
		return err
	}

	tracker.FinishStageWithInfo(fmt.Sprintf("(%d files, %d directories)", stats.Files, stats.Directories))
	logger.Info(cmd.Context(), "cloned tree",
		key.Source.Field(src),
		key.Destination.Field(dst),
		key.DurationMS.Field(stats.Elapsed),
		key.Bytes.Field(stats.BytesCopied),
	)

	fmt.Printf("Reflinked: %d\n", stats.Reflinked)
	fmt.Printf("Copied:    %d (%s)\n", stats.Copied, humanize.IBytes(uint64(stats.BytesCopied)))
	if stats.Symlinks > 0 {
		fmt.Printf("Symlinks:  %d\n", stats.Symlinks)
	}
	if stats.Excluded > 0 {
		fmt.Printf("Excluded:  %d\n", stats.Excluded)
	}
	if stats.Skipped > 0 {
		fmt.Printf("Skipped:   %d special files\n", stats.Skipped)
	}
	return nil
}
