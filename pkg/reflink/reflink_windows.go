//go:build windows

package reflink

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	fsctlSetSparse               = 0x000900c4
	fsctlGetIntegrityInformation = 0x0009027c
	fsctlSetIntegrityInformation = 0x0009c280

	fileSupportsBlockRefcounting = 0x08000000

	opVolume    = "volume"
	opSparse    = "sparse"
	opIntegrity = "integrity"
	opTruncate  = "truncate"
)

var errNoBlockCloning = errors.New("volume does not support block cloning")

type duplicateExtentsData struct {
	FileHandle       windows.Handle
	SourceFileOffset int64
	TargetFileOffset int64
	ByteCount        int64
}

type getIntegrityInformationBuffer struct {
	ChecksumAlgorithm        uint16
	Reserved                 uint16
	Flags                    uint32
	ChecksumChunkSizeInBytes uint32
	ClusterSizeInBytes       uint32
}

type setIntegrityInformationBuffer struct {
	ChecksumAlgorithm uint16
	Reserved          uint16
	Flags             uint32
}

// reflinkFile clones src into a new dst with block cloning. Only ReFS
// volumes and Dev Drives support it; other volumes are reported as
// unsupported before dst is created.
func reflinkFile(src, dst string) error {
	s, err := os.Open(src)
	if err != nil {
		return newError(opOpen, src, dst, err)
	}
	defer s.Close()
	sh := windows.Handle(s.Fd())

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(sh, &info); err != nil {
		return newError(opStat, src, dst, err)
	}
	size := int64(info.FileSizeHigh)<<32 | int64(info.FileSizeLow)

	supported, err := blockCloningSupported(sh)
	if err != nil {
		return newError(opVolume, src, dst, err)
	}
	if !supported {
		return unsupported(opVolume, src, dst, errNoBlockCloning)
	}

	d, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return newError(opCreate, src, dst, err)
	}

	op, err := cloneExtents(d, sh, info.FileAttributes, size)
	if closeErr := d.Close(); err == nil && closeErr != nil {
		op, err = opClose, closeErr
	}
	if err != nil {
		os.Remove(dst)
		return newError(op, src, dst, err)
	}
	return nil
}

// cloneExtents prepares d to receive the clone and duplicates the extents of
// the source handle into it. It returns the step that failed.
func cloneExtents(d *os.File, sh windows.Handle, attrs uint32, size int64) (string, error) {
	dh := windows.Handle(d.Fd())

	if attrs&windows.FILE_ATTRIBUTE_SPARSE_FILE != 0 {
		if err := ioctl(dh, fsctlSetSparse, nil, 0, nil, 0); err != nil {
			return opSparse, err
		}
	}

	var integrity getIntegrityInformationBuffer
	err := ioctl(sh, fsctlGetIntegrityInformation, nil, 0,
		(*byte)(unsafe.Pointer(&integrity)), uint32(unsafe.Sizeof(integrity)))
	if err != nil {
		return opIntegrity, err
	}

	cluster := int64(integrity.ClusterSizeInBytes)
	if cluster != 0 {
		if cluster != 4<<10 && cluster != 64<<10 {
			return opIntegrity, fmt.Errorf("unexpected cluster size %d, ReFS uses 4K or 64K", cluster)
		}
		set := setIntegrityInformationBuffer{
			ChecksumAlgorithm: integrity.ChecksumAlgorithm,
			Reserved:          integrity.Reserved,
			Flags:             integrity.Flags,
		}
		// Dev Drives reject this; the clone works without it.
		_ = ioctl(dh, fsctlSetIntegrityInformation,
			(*byte)(unsafe.Pointer(&set)), uint32(unsafe.Sizeof(set)), nil, 0)
	}

	if err := d.Truncate(size); err != nil {
		return opTruncate, err
	}

	var offset int64
	for _, n := range cloneChunks(size, cluster) {
		dup := duplicateExtentsData{
			FileHandle:       sh,
			SourceFileOffset: offset,
			TargetFileOffset: offset,
			ByteCount:        n,
		}
		err := ioctl(dh, windows.FSCTL_DUPLICATE_EXTENTS_TO_FILE,
			(*byte)(unsafe.Pointer(&dup)), uint32(unsafe.Sizeof(dup)), nil, 0)
		if err != nil {
			return opClone, err
		}
		offset += n
	}
	return opClone, nil
}

func blockCloningSupported(h windows.Handle) (bool, error) {
	var flags uint32
	if err := windows.GetVolumeInformationByHandle(h, nil, 0, nil, nil, &flags, nil, 0); err != nil {
		return false, err
	}
	return flags&fileSupportsBlockRefcounting != 0, nil
}

func ioctl(h windows.Handle, code uint32, in *byte, inSize uint32, out *byte, outSize uint32) error {
	var returned uint32
	return windows.DeviceIoControl(h, code, in, inSize, out, outSize, &returned, nil)
}
