// Package reflink clones files using the filesystem's copy-on-write support.
//
// A reflink shares the data blocks of the source until either file is
// modified. Support depends on the filesystem: btrfs, XFS and bcachefs on
// Linux, APFS on macOS and iOS, ReFS and Dev Drives on Windows. Everywhere
// else Reflink fails with an error matching ErrUnsupported, and callers
// should use ReflinkOrCopy or fall back to a regular copy themselves.
package reflink

import (
	"errors"
	"io/fs"
	"os"
)

const (
	opStat   = "stat"
	opOpen   = "open"
	opCreate = "create"
	opClone  = "clone"
	opCopy   = "copy"
	opChmod  = "chmod"
	opClose  = "close"
)

// Reflink creates dst as a copy-on-write clone of src.
//
// dst must not exist; Reflink never overwrites. On failure no file is left
// at dst. The returned error is always an *Error and can be matched with
// errors.Is against ErrUnsupported, ErrAlreadyExists, ErrNotFound,
// ErrPermissionDenied and ErrInvalidInput.
//
// The backend is chosen at build time: FICLONE on Linux and Android,
// clonefile(2) on macOS and iOS, FSCTL_DUPLICATE_EXTENTS_TO_FILE on Windows.
func Reflink(src, dst string) error {
	if err := checkPaths(src, dst); err != nil {
		return err
	}
	return reflinkFile(src, dst)
}

// checkPaths rejects a missing or non-regular source and an existing
// destination before any backend runs, so the outcome is the same on every
// platform.
func checkPaths(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return newError(opStat, src, dst, err)
	}
	if !info.Mode().IsRegular() {
		return &Error{Op: opStat, Src: src, Dst: dst, Kind: KindInvalidInput, Err: ErrInvalidInput}
	}

	if _, err := os.Lstat(dst); err == nil {
		return &Error{Op: opCreate, Src: src, Dst: dst, Kind: KindAlreadyExists, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return newError(opStat, src, dst, err)
	}
	return nil
}

func unsupported(op, src, dst string, err error) *Error {
	return &Error{Op: op, Src: src, Dst: dst, Kind: KindUnsupported, Code: nativeCode(err), Err: err}
}
