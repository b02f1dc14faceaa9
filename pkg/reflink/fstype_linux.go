//go:build linux

package reflink

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	zfsSuperMagic      = 0x2fc12fc1
	bcachefsSuperMagic = 0xca451a4e
)

var filesystemNames = map[uint32]string{
	unix.BTRFS_SUPER_MAGIC:     "btrfs",
	unix.XFS_SUPER_MAGIC:       "xfs",
	unix.EXT4_SUPER_MAGIC:      "ext4",
	unix.TMPFS_MAGIC:           "tmpfs",
	unix.OVERLAYFS_SUPER_MAGIC: "overlay",
	unix.NFS_SUPER_MAGIC:       "nfs",
	unix.F2FS_SUPER_MAGIC:      "f2fs",
	zfsSuperMagic:              "zfs",
	bcachefsSuperMagic:         "bcachefs",
}

// FilesystemType returns the name of the filesystem holding path, or its
// magic number in hex when the name is not known.
func FilesystemType(path string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "", newError(opStat, path, "", err)
	}

	// Statfs_t.Type is signed on some architectures
	magic := uint32(st.Type)
	if name, ok := filesystemNames[magic]; ok {
		return name, nil
	}
	return fmt.Sprintf("0x%x", magic), nil
}
