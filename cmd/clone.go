package cmd

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reflinkcopy/internal/key"
	"reflinkcopy/internal/logger"
	"reflinkcopy/pkg/reflink"
)

var cloneAlways bool

// cloneCmd represents the clone command
var cloneCmd = &cobra.Command{
	Use:   "clone <src> <dst>",
	Short: "Clone a single file",
	Long: `Clone src to dst as a copy-on-write reflink.

When the filesystem cannot reflink the file, a regular copy is made instead
unless --always is given. dst must not exist.`,
	Args: cobra.ExactArgs(2),
	RunE: cloneFile,
}

func init() {
	cloneCmd.Flags().BoolVar(&cloneAlways, "always", false, "fail instead of copying when reflinks are unsupported")
}

func cloneFile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	src, dst := args[0], args[1]

	if cloneAlways && noReflink {
		return fmt.Errorf("--always and --no-reflink cannot be used together")
	}

	if dryRun {
		fmt.Printf("Would clone %s to %s\n", src, dst)
		return nil
	}

	var res reflink.Result
	var err error
	switch {
	case noReflink:
		res.Method = reflink.MethodCopy
		res.Bytes, err = reflink.Copy(src, dst)
	case cloneAlways:
		err = reflink.Reflink(src, dst)
	default:
		res, err = reflink.ReflinkOrCopy(src, dst)
	}
	if err != nil {
		var rerr *reflink.Error
		if errors.As(err, &rerr) {
			logger.Error(ctx, "clone failed",
				key.Source.Field(src),
				key.Destination.Field(dst),
				key.Kind.Field(rerr.Kind.String()),
				key.Code.Field(rerr.Code),
			)
		}
		return err
	}

	logger.Debug(ctx, "cloned file",
		key.Source.Field(src),
		key.Destination.Field(dst),
		key.Method.Field(res.Method.String()),
		key.Bytes.Field(res.Bytes),
	)

	if res.Method == reflink.MethodCopy {
		fmt.Printf("Copied %s to %s (%s)\n", src, dst, humanize.IBytes(uint64(res.Bytes)))
		return nil
	}
	fmt.Printf("Reflinked %s to %s\n", src, dst)
	return nil
}
