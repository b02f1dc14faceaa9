//go:build windows

package reflink

import (
	"os"

	"golang.org/x/sys/windows"
)

// FilesystemType returns the name of the volume's filesystem holding path,
// such as "NTFS" or "ReFS".
func FilesystemType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", newError(opOpen, path, "", err)
	}
	defer f.Close()

	name := make([]uint16, windows.MAX_PATH+1)
	err = windows.GetVolumeInformationByHandle(windows.Handle(f.Fd()), nil, 0, nil, nil, nil, &name[0], uint32(len(name)))
	if err != nil {
		return "", newError(opVolume, path, "", err)
	}
	return windows.UTF16ToString(name), nil
}
