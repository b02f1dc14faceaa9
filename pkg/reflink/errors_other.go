//go:build !linux && !darwin && !windows

package reflink

func isUnsupportedErrno(string, error) bool {
	return false
}
