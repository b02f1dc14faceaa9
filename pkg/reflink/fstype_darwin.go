//go:build darwin

package reflink

import (
	"golang.org/x/sys/unix"
)

// FilesystemType returns the name of the filesystem holding path, such as
// "apfs" or "hfs".
func FilesystemType(path string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "", newError(opStat, path, "", err)
	}

	return unix.ByteSliceToString(st.Fstypename[:]), nil
}
