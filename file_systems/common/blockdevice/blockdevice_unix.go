//go:build unix

package blockdevice

import (
	"fmt"
	"io"
	"sync"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
	"golang.org/x/sys/unix"
)

// Device is an image file or block device opened read-only.
type Device struct {
	// lock is held for reading during I/O and for writing by Close, so that
	// a file descriptor is never used after it's been closed.
	lock   sync.RWMutex
	fd     int
	closed bool
	path   string
	size   int64
}

// Open opens the file or block device at `path` for reading.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, translateErrno(err).WithMessage(
			fmt.Sprintf("can't open %q", path))
	}

	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, translateErrno(err).WithMessage(
			fmt.Sprintf("can't stat %q", path))
	}

	var size int64
	switch stat.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		size = stat.Size
	case unix.S_IFBLK:
		// Block devices report a size of 0; the end of the device is found by
		// seeking to it.
		size, err = unix.Seek(fd, 0, io.SeekEnd)
		if err != nil {
			unix.Close(fd)
			return nil, translateErrno(err).WithMessage(
				fmt.Sprintf("can't determine the size of %q", path))
		}
	case unix.S_IFDIR:
		unix.Close(fd)
		return nil, minixfs.ErrIsADirectory.WithMessage(path)
	default:
		unix.Close(fd)
		return nil, minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q is not a regular file or block device", path))
	}

	return &Device{fd: fd, path: path, size: size}, nil
}

func (device *Device) ReadBlock(index c.PhysicalBlock, blockSize uint) ([]byte, error) {
	err := c.CheckBlockBounds(index, blockSize, device.size)
	if err != nil {
		return nil, err
	}

	device.lock.RLock()
	defer device.lock.RUnlock()
	if device.closed {
		return nil, minixfs.ErrBadFileDescriptor.WithMessage(
			fmt.Sprintf("%q is closed", device.path))
	}

	buffer := make([]byte, blockSize)
	offset := int64(index) * int64(blockSize)

	for totalRead := 0; totalRead < len(buffer); {
		n, err := unix.Pread(device.fd, buffer[totalRead:], offset+int64(totalRead))
		if err == unix.EINTR {
			continue
		} else if err != nil {
			return nil, minixfs.ErrIOFailed.Wrap(err).WithMessage(
				fmt.Sprintf("reading block %d of %q", index, device.path))
		} else if n == 0 {
			return nil, minixfs.ErrIOFailed.WithMessage(
				fmt.Sprintf(
					"short read of block %d of %q: expected %d bytes, got %d",
					index,
					device.path,
					blockSize,
					totalRead,
				),
			)
		}
		totalRead += n
	}
	return buffer, nil
}

// Close releases the file descriptor. Reads after Close fail with
// [minixfs.ErrBadFileDescriptor].
func (device *Device) Close() error {
	device.lock.Lock()
	defer device.lock.Unlock()

	if device.closed {
		return minixfs.ErrBadFileDescriptor.WithMessage(
			fmt.Sprintf("%q is already closed", device.path))
	}
	device.closed = true

	err := unix.Close(device.fd)
	if err != nil {
		return translateErrno(err)
	}
	return nil
}

func translateErrno(err error) minixfs.DriverError {
	switch err {
	case unix.ENOENT:
		return minixfs.ErrNotFound.Wrap(err)
	case unix.ENOTDIR:
		return minixfs.ErrNotADirectory.Wrap(err)
	case unix.ENAMETOOLONG:
		return minixfs.ErrNameTooLong.Wrap(err)
	case unix.ELOOP:
		return minixfs.ErrLinkCycleDetected.Wrap(err)
	case unix.EISDIR:
		return minixfs.ErrIsADirectory.Wrap(err)
	}
	return minixfs.ErrIOFailed.Wrap(err)
}
