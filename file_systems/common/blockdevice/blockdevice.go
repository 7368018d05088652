// Package blockdevice is a [common.BlockSource] for image files and real block
// devices on the host. It reads with positional I/O, so one Device can serve
// any number of concurrent readers.
package blockdevice

import (
	c "github.com/dargueta/minixfs/file_systems/common"
)

var _ c.BlockSource = (*Device)(nil)

// Size returns the size of the device in bytes, as found when it was opened.
func (device *Device) Size() int64 {
	return device.size
}

// Path returns the path the device was opened with.
func (device *Device) Path() string {
	return device.path
}

func (device *Device) TotalBlocks(blockSize uint) uint {
	if blockSize == 0 {
		return 0
	}
	return uint(device.size / int64(blockSize))
}
