//go:build linux || darwin

package reflink

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isUnsupportedErrno catches the errnos that mean "no clone support here"
// but are not part of the errors.ErrUnsupported family.
func isUnsupportedErrno(op string, err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case unix.EXDEV, unix.ENOTTY:
		return true
	case unix.EINVAL:
		// FICLONE answers EINVAL on filesystems without reflink support
		return op == opClone
	}
	return false
}
