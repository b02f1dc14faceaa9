//go:build !linux && !darwin && !windows

package reflink

import (
	"fmt"
	"runtime"
)

func reflinkFile(src, dst string) error {
	return unsupported(opClone, src, dst, fmt.Errorf("%w on %s/%s", ErrUnsupported, runtime.GOOS, runtime.GOARCH))
}
