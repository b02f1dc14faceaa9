//go:build windows

package reflink

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

func isUnsupportedErrno(_ string, err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case windows.ERROR_NOT_SUPPORTED,
		windows.ERROR_INVALID_FUNCTION,
		windows.ERROR_NOT_SAME_DEVICE,
		windows.ERROR_CALL_NOT_IMPLEMENTED:
		return true
	}
	return false
}
