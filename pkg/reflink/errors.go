package reflink

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Kind classifies a reflink failure independently of the host OS
type Kind int

const (
	// KindOther is any native failure not covered by another kind
	KindOther Kind = iota
	// KindUnsupported means the filesystem or OS cannot clone this file.
	// Callers are expected to fall back to a regular copy.
	KindUnsupported
	KindAlreadyExists
	KindNotFound
	KindPermissionDenied
	// KindInvalidInput means the source is not a regular file
	KindInvalidInput
)

var (
	ErrUnsupported      = errors.New("reflink not supported")
	ErrAlreadyExists    = errors.New("destination already exists")
	ErrNotFound         = errors.New("file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("source is not a regular file")
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindAlreadyExists:
		return "already exists"
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "other"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnsupported:
		return ErrUnsupported
	case KindAlreadyExists:
		return ErrAlreadyExists
	case KindNotFound:
		return ErrNotFound
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindInvalidInput:
		return ErrInvalidInput
	default:
		return nil
	}
}

// Error is returned by every operation in this package.
//
// Code holds the native error number (errno on Unix, the Win32 error code on
// Windows) when the failure came from the OS, and 0 otherwise.
type Error struct {
	Op   string
	Src  string
	Dst  string
	Kind Kind
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Dst == "" {
		return fmt.Sprintf("reflink %s %s: %v", e.Op, e.Src, e.Err)
	}
	return fmt.Sprintf("reflink %s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching e.Kind
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of err, or KindOther if err did not come from this
// package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// IsUnsupported reports whether err means the clone cannot be done here
// and a regular copy should be used instead.
func IsUnsupported(err error) bool {
	return KindOf(err) == KindUnsupported
}

// newError wraps a native failure, classifying it by the step that produced
// it.
func newError(op, src, dst string, err error) *Error {
	return &Error{
		Op:   op,
		Src:  src,
		Dst:  dst,
		Kind: classify(op, err),
		Code: nativeCode(err),
		Err:  err,
	}
}

func classify(op string, err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, errors.ErrUnsupported), isUnsupportedErrno(op, err):
		return KindUnsupported
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	default:
		return KindOther
	}
}

func nativeCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
