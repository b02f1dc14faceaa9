package reflink

import (
	"io"
	"os"
)

// Method is how a file ended up at its destination
type Method int

const (
	MethodReflink Method = iota
	MethodCopy
)

func (m Method) String() string {
	if m == MethodCopy {
		return "copy"
	}
	return "reflink"
}

// Result describes a successful ReflinkOrCopy. Bytes is only set for
// MethodCopy; a reflink moves no data.
type Result struct {
	Method Method
	Bytes  int64
}

// ReflinkOrCopy reflinks src to dst and falls back to a regular copy when
// the clone is unsupported (different filesystems, a filesystem without
// copy-on-write, or an OS without a backend). Every other failure is
// returned as is.
func ReflinkOrCopy(src, dst string) (Result, error) {
	err := Reflink(src, dst)
	if err == nil {
		return Result{Method: MethodReflink}, nil
	}
	if !IsUnsupported(err) {
		return Result{}, err
	}

	n, err := Copy(src, dst)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: MethodCopy, Bytes: n}, nil
}

// Copy copies the contents of src into a new file dst with the same
// permission bits. Like Reflink it refuses to overwrite dst and removes
// whatever it wrote if the copy fails.
func Copy(src, dst string) (int64, error) {
	if err := checkPaths(src, dst); err != nil {
		return 0, err
	}

	s, err := os.Open(src)
	if err != nil {
		return 0, newError(opOpen, src, dst, err)
	}
	defer s.Close()

	info, err := s.Stat()
	if err != nil {
		return 0, newError(opStat, src, dst, err)
	}

	d, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, newError(opCreate, src, dst, err)
	}

	op := opCopy
	n, err := io.Copy(d, s)
	if err == nil {
		op = opChmod
		err = d.Chmod(info.Mode().Perm())
	}
	if closeErr := d.Close(); err == nil && closeErr != nil {
		op, err = opClose, closeErr
	}
	if err != nil {
		os.Remove(dst)
		return 0, newError(op, src, dst, err)
	}
	return n, nil
}
