//go:build !linux && !darwin && !windows

package reflink

import (
	"fmt"
	"runtime"
)

func FilesystemType(path string) (string, error) {
	return "", unsupported(opStat, path, "", fmt.Errorf("%w on %s/%s", ErrUnsupported, runtime.GOOS, runtime.GOARCH))
}
