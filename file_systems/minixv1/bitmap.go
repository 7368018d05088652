package minixv1

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
)

// allocationMaps holds the inode and zone bitmaps, loaded once at mount time.
// A set bit means the inode or zone is in use.
type allocationMaps struct {
	inodes        bitmap.Bitmap
	zones         bitmap.Bitmap
	numInodes     uint
	numZones      uint
	firstDataZone uint
}

func loadAllocationMaps(source c.BlockSource, sb Superblock) (allocationMaps, error) {
	inodeMap, err := c.ReadBlocks(
		source, c.PhysicalBlock(InodeMapStart), uint(sb.IMapBlocks), BlockSize)
	if err != nil {
		return allocationMaps{}, minixfs.CastToDriverError(err).WithMessage(
			"failed to read inode bitmap")
	}

	zoneMap, err := c.ReadBlocks(
		source, c.PhysicalBlock(sb.ZoneMapStart()), uint(sb.ZMapBlocks), BlockSize)
	if err != nil {
		return allocationMaps{}, minixfs.CastToDriverError(err).WithMessage(
			"failed to read zone bitmap")
	}

	return allocationMaps{
		inodes:        bitmap.Bitmap(inodeMap),
		zones:         bitmap.Bitmap(zoneMap),
		numInodes:     uint(sb.NumInodes),
		numZones:      uint(sb.NumZones),
		firstDataZone: uint(sb.FirstDataZone),
	}, nil
}

// InodeAllocated returns true if inode `n` is marked as in use.
func (maps *allocationMaps) InodeAllocated(n InodeNumber) (bool, error) {
	if n < 1 || uint(n) > maps.numInodes {
		return false, minixfs.ErrOutOfRange.WithMessage(
			fmt.Sprintf("inode %d not in range [1, %d]", n, maps.numInodes))
	}
	return maps.inodes.Get(int(n)), nil
}

// ZoneAllocated returns true if data zone `z` is marked as in use. Zones
// before the first data zone hold metadata and aren't in the bitmap.
func (maps *allocationMaps) ZoneAllocated(z ZoneNumber) (bool, error) {
	if uint(z) < maps.firstDataZone || uint(z) >= maps.numZones {
		return false, minixfs.ErrOutOfRange.WithMessage(
			fmt.Sprintf(
				"zone %d not in range [%d, %d)", z, maps.firstDataZone, maps.numZones))
	}
	return maps.zones.Get(int(uint(z) - maps.firstDataZone + 1)), nil
}

// FreeInodes counts the inodes whose bit is clear.
func (maps *allocationMaps) FreeInodes() uint {
	free := uint(0)
	for i := uint(1); i <= maps.numInodes; i++ {
		if !maps.inodes.Get(int(i)) {
			free++
		}
	}
	return free
}

// FreeZones counts the data zones whose bit is clear.
func (maps *allocationMaps) FreeZones() uint {
	free := uint(0)
	for z := maps.firstDataZone; z < maps.numZones; z++ {
		if !maps.zones.Get(int(z - maps.firstDataZone + 1)) {
			free++
		}
	}
	return free
}
