//go:build linux

package reflink

import (
	"os"

	"golang.org/x/sys/unix"
)

// reflinkFile clones src into a freshly created dst with the FICLONE ioctl.
// The destination is opened with O_EXCL and removed again if the clone fails.
func reflinkFile(src, dst string) error {
	s, err := os.Open(src)
	if err != nil {
		return newError(opOpen, src, dst, err)
	}
	defer s.Close()

	info, err := s.Stat()
	if err != nil {
		return newError(opStat, src, dst, err)
	}

	d, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return newError(opCreate, src, dst, err)
	}

	op := opClone
	err = ficlone(d, s)
	if err == nil {
		// O_CREATE permissions are filtered by the umask
		op = opChmod
		err = d.Chmod(info.Mode().Perm())
	}
	if closeErr := d.Close(); err == nil && closeErr != nil {
		op, err = opClose, closeErr
	}
	if err != nil {
		os.Remove(dst)
		return newError(op, src, dst, err)
	}
	return nil
}

func ficlone(d, s *os.File) error {
	sc, err := s.SyscallConn()
	if err != nil {
		return err
	}
	dc, err := d.SyscallConn()
	if err != nil {
		return err
	}

	var srcErr, ioctlErr error
	err = dc.Control(func(dfd uintptr) {
		srcErr = sc.Control(func(sfd uintptr) {
			ioctlErr = unix.IoctlFileClone(int(dfd), int(sfd))
		})
	})
	if err != nil {
		return err
	}
	if srcErr != nil {
		return srcErr
	}
	return ioctlErr
}
