package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reflinkcopy/internal/key"
	"reflinkcopy/internal/logger"
	"reflinkcopy/pkg/progress"
	"reflinkcopy/pkg/reflink"
)

var compareSize string

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare [dir]",
	Short: "Time a reflink against a regular copy",
	Long: `Write a file of --size bytes in dir (the current directory by default),
then time reflinking it and copying it. All files are removed afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: compare,
}

func init() {
	compareCmd.Flags().StringVarP(&compareSize, "size", "s", "100MB", "size of the test file")
}

func compare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	size, err := humanize.ParseBytes(compareSize)
	if err != nil {
		return fmt.Errorf("invalid --size: %w", err)
	}

	if dryRun {
		fmt.Printf("Would compare reflink and copy of a %s file in %s\n", humanize.Bytes(size), dir)
		return nil
	}

	work, err := os.MkdirTemp(dir, ".reflinkcopy-compare-*")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(work)

	tracker := progress.New(false)
	tracker.SetQuiet(quiet)
	tracker.StartStage(fmt.Sprintf("Writing %s test file", humanize.Bytes(size)))

	base := filepath.Join(work, "base.txt")
	if err := writeFilled(base, size); err != nil {
		err = fmt.Errorf("failed to write test file: %w", err)
		tracker.Error(err)
		return err
	}
	tracker.FinishStage()

	start := time.Now()
	if err := reflink.Reflink(base, filepath.Join(work, "reflinked.txt")); err != nil {
		return fmt.Errorf("failed to reflink test file: %w", err)
	}
	reflinkTime := time.Since(start)
	fmt.Printf("Time to reflink: %v\n", reflinkTime)

	start = time.Now()
	if _, err := reflink.Copy(base, filepath.Join(work, "copied.txt")); err != nil {
		return err
	}
	copyTime := time.Since(start)
	fmt.Printf("Time to copy: %v\n", copyTime)

	logger.Debug(ctx, "compared reflink and copy",
		key.Bytes.Field(int64(size)),
		key.DurationMS.Field(reflinkTime),
		key.Method.Field(reflink.MethodReflink.String()),
	)
	logger.Debug(ctx, "compared reflink and copy",
		key.Bytes.Field(int64(size)),
		key.DurationMS.Field(copyTime),
		key.Method.Field(reflink.MethodCopy.String()),
	)

	if reflinkTime > 0 {
		fmt.Printf("Speedup: %.1fx\n", float64(copyTime)/float64(reflinkTime))
	}
	return nil
}

// writeFilled creates path holding size bytes of 'A'
func writeFilled(path string, size uint64) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	chunk := bytes.Repeat([]byte{'A'}, 1<<20)
	for remaining := size; remaining > 0; {
		n := min(remaining, uint64(len(chunk)))
		if _, err := f.Write(chunk[:n]); err != nil {
			f.Close()
			return err
		}
		remaining -= n
	}
	return f.Close()
}
