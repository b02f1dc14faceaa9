//go:build darwin

package reflink

import (
	"golang.org/x/sys/unix"
)

// reflinkFile clones src to dst with clonefile(2). The call creates dst
// itself and fails with EEXIST if it is already present, so there is nothing
// to clean up on failure.
//
// CLONE_NOOWNERCOPY leaves dst owned by the caller instead of the source's
// owner.
func reflinkFile(src, dst string) error {
	if err := unix.Clonefile(src, dst, unix.CLONE_NOOWNERCOPY); err != nil {
		return newError(opClone, src, dst, err)
	}
	return nil
}
