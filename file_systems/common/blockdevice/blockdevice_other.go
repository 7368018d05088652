//go:build !unix

package blockdevice

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
)

// Device is an image file opened read-only. Block devices are only supported
// on Unix systems.
type Device struct {
	lock   sync.RWMutex
	file   *os.File
	source *c.ReaderAtSource
	closed bool
	path   string
	size   int64
}

// Open opens the image file at `path` for reading.
func Open(path string) (*Device, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, minixfs.ErrNotFound.Wrap(err)
		}
		return nil, minixfs.ErrIOFailed.Wrap(err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, minixfs.ErrIOFailed.Wrap(err)
	}
	if info.IsDir() {
		file.Close()
		return nil, minixfs.ErrIsADirectory.WithMessage(path)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q is not a regular file", path))
	}

	return &Device{
		file:   file,
		source: c.NewReaderAtSource(file, info.Size()),
		path:   path,
		size:   info.Size(),
	}, nil
}

func (device *Device) ReadBlock(index c.PhysicalBlock, blockSize uint) ([]byte, error) {
	device.lock.RLock()
	defer device.lock.RUnlock()
	if device.closed {
		return nil, minixfs.ErrBadFileDescriptor.WithMessage(
			fmt.Sprintf("%q is closed", device.path))
	}
	return device.source.ReadBlock(index, blockSize)
}

// Close releases the file. Reads after Close fail with
// [minixfs.ErrBadFileDescriptor].
func (device *Device) Close() error {
	device.lock.Lock()
	defer device.lock.Unlock()

	if device.closed {
		return minixfs.ErrBadFileDescriptor.WithMessage(
			fmt.Sprintf("%q is already closed", device.path))
	}
	device.closed = true

	err := device.file.Close()
	if err != nil {
		return minixfs.ErrIOFailed.Wrap(err)
	}
	return nil
}
