package reflink

import (
	"fmt"
	"os"
	"path/filepath"
)

const probeContent = "reflink probe"

// IsSupported reports whether files in dir can be reflinked, by cloning a
// small temporary file next to itself. An unsupported filesystem is not an
// error; anything else that stops the probe (dir missing, not writable) is.
func IsSupported(dir string) (bool, error) {
	f, err := os.CreateTemp(dir, ".reflink-probe-*")
	if err != nil {
		return false, fmt.Errorf("failed to create probe file: %w", err)
	}
	src := f.Name()
	defer os.Remove(src)

	_, err = f.WriteString(probeContent)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return false, fmt.Errorf("failed to write probe file: %w", err)
	}

	dst := filepath.Join(dir, filepath.Base(src)+".clone")
	defer os.Remove(dst)

	if err := Reflink(src, dst); err != nil {
		if IsUnsupported(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
