package minixv1

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
)

// indirectFrame is one step of a walk through indirect zones: the zone holding
// an array of pointers, and which pointer to take from it.
type indirectFrame struct {
	zone  ZoneNumber
	index uint
}

// maxIndirection is the deepest a V1 zone pointer can be nested.
const maxIndirection = 2

// ResolveZone finds the zone holding byte `offset` of a file. It returns
// [NoZone] if the offset falls in a hole.
//
// Offsets at or past the end of the file fail with
// [minixfs.ErrOffsetOutOfRange]; callers are expected to bound their reads
// by the file size. A pointer read from an indirect zone that doesn't point
// to a data zone fails with [minixfs.ErrCorruptIndirection].
func (fs *FileSystem) ResolveZone(inode Inode, offset int64) (ZoneNumber, error) {
	if err := fs.checkMounted(); err != nil {
		return NoZone, err
	}
	size := dataSize(inode)
	if offset < 0 || offset >= size {
		return NoZone, minixfs.ErrOffsetOutOfRange.WithMessage(
			fmt.Sprintf(
				"inode %d: offset %d not in range [0, %d)", inode.Number, offset, size))
	}
	return fs.resolveZone(inode, uint64(offset))
}

// dataSize is the number of bytes of zone data an inode addresses. Device
// inodes have none: their first zone slot holds the device number.
func dataSize(inode Inode) int64 {
	if inode.IsDevice() {
		return 0
	}
	return int64(inode.Size)
}

func (fs *FileSystem) resolveZone(inode Inode, offset uint64) (ZoneNumber, error) {
	zoneIndex := offset / uint64(fs.superblock.ZoneSize())
	if zoneIndex < NumDirectZones {
		return ZoneNumber(inode.Zones[zoneIndex]), nil
	}

	pointersPerZone := uint64(fs.superblock.PointersPerZone())
	remainder := zoneIndex - NumDirectZones

	var frames [maxIndirection]indirectFrame
	depth := 0

	if remainder < pointersPerZone {
		frames[0] = indirectFrame{
			zone:  ZoneNumber(inode.Zones[IndirectZoneSlot]),
			index: uint(remainder),
		}
		depth = 1
	} else {
		remainder -= pointersPerZone
		if remainder >= pointersPerZone*pointersPerZone {
			return NoZone, minixfs.ErrOffsetOutOfRange.WithMessage(
				fmt.Sprintf(
					"inode %d: offset %d is past the addressable size %d",
					inode.Number,
					offset,
					fs.superblock.MaxAddressableSize(),
				),
			)
		}
		frames[0] = indirectFrame{
			zone:  ZoneNumber(inode.Zones[DoubleIndirectZoneSlot]),
			index: uint(remainder / pointersPerZone),
		}
		// The zone of the second frame comes from the first.
		frames[1] = indirectFrame{index: uint(remainder % pointersPerZone)}
		depth = 2
	}

	current := frames[0].zone
	for level := 0; level < depth; level++ {
		if current == NoZone {
			return NoZone, nil
		}

		next, err := fs.readZonePointer(current, frames[level].index)
		if err != nil {
			return NoZone, err
		}
		current = next
	}
	return current, nil
}

// readZonePointer reads entry `index` of the pointer array stored in indirect
// zone `zone`, and validates it.
func (fs *FileSystem) readZonePointer(zone ZoneNumber, index uint) (ZoneNumber, error) {
	if index >= fs.superblock.PointersPerZone() {
		return NoZone, minixfs.ErrCorruptIndirection.WithMessage(
			fmt.Sprintf(
				"index %d not in range [0, %d) of zone %d",
				index,
				fs.superblock.PointersPerZone(),
				zone,
			),
		)
	}

	byteOffset := index * ZonePointerSize
	blockIndex := fs.superblock.zoneToBlock(zone) + byteOffset/BlockSize
	block, err := fs.source.ReadBlock(c.PhysicalBlock(blockIndex), BlockSize)
	if err != nil {
		return NoZone, minixfs.CastToDriverError(err).WithMessage(
			fmt.Sprintf("failed to read indirect zone %d", zone))
	}

	inBlock := byteOffset % BlockSize
	raw := binary.LittleEndian.Uint16(block[inBlock : inBlock+ZonePointerSize])

	pointer, err := fs.superblock.ZoneNumber(uint(raw))
	if err != nil {
		return NoZone, minixfs.ErrCorruptIndirection.WithMessage(
			fmt.Sprintf("entry %d of zone %d: %s", index, zone, err.Error()))
	}
	return pointer, nil
}

// readPointerZone reads and validates every pointer in an indirect zone.
func (fs *FileSystem) readPointerZone(zone ZoneNumber) ([]ZoneNumber, error) {
	data, err := c.ReadBlocks(
		fs.source,
		c.PhysicalBlock(fs.superblock.zoneToBlock(zone)),
		fs.superblock.BlocksPerZone(),
		BlockSize,
	)
	if err != nil {
		return nil, minixfs.CastToDriverError(err).WithMessage(
			fmt.Sprintf("failed to read indirect zone %d", zone))
	}

	pointers := make([]ZoneNumber, fs.superblock.PointersPerZone())
	for i := range pointers {
		raw := binary.LittleEndian.Uint16(data[i*ZonePointerSize:])
		pointers[i], err = fs.superblock.ZoneNumber(uint(raw))
		if err != nil {
			return nil, minixfs.ErrCorruptIndirection.WithMessage(
				fmt.Sprintf("entry %d of zone %d: %s", i, zone, err.Error()))
		}
	}
	return pointers, nil
}

// Read returns up to `length` bytes of a file starting at `offset`. A read
// that runs past the end of the file is cut short without an error. Holes
// read as zeroes.
//
// It fails with [minixfs.ErrOffsetOutOfRange] if `offset` is negative or past
// the end of the file. Reading at exactly the end returns an empty slice.
// Device inodes have no data, whatever their size field says.
func (fs *FileSystem) Read(inode Inode, offset int64, length int) ([]byte, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}

	size := dataSize(inode)
	if offset < 0 || offset > size {
		return nil, minixfs.ErrOffsetOutOfRange.WithMessage(
			fmt.Sprintf("inode %d: offset %d not in range [0, %d]", inode.Number, offset, size))
	}
	if length < 0 {
		return nil, minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("negative read length %d", length))
	}
	if int64(length) > size-offset {
		length = int(size - offset)
	}

	output := make([]byte, length)
	zoneSize := int64(fs.superblock.ZoneSize())

	for done := 0; done < length; {
		position := offset + int64(done)
		inZone := position % zoneSize
		chunkSize := zoneSize - inZone
		if chunkSize > int64(length-done) {
			chunkSize = int64(length - done)
		}

		zone, err := fs.resolveZone(inode, uint64(position))
		if err != nil {
			return nil, err
		}

		// Holes are already zeroed in the output.
		if zone != NoZone {
			err = fs.readZoneRange(zone, inZone, output[done:done+int(chunkSize)])
			if err != nil {
				return nil, err
			}
		}
		done += int(chunkSize)
	}
	return output, nil
}

// readZoneRange fills `buffer` from a zone, starting `offset` bytes into it.
// The range must not extend past the end of the zone.
func (fs *FileSystem) readZoneRange(zone ZoneNumber, offset int64, buffer []byte) error {
	zoneStart := fs.superblock.zoneToBlock(zone)

	for copied := 0; copied < len(buffer); {
		position := offset + int64(copied)
		blockIndex := zoneStart + uint(position/BlockSize)

		block, err := fs.source.ReadBlock(c.PhysicalBlock(blockIndex), BlockSize)
		if err != nil {
			return minixfs.CastToDriverError(err).WithMessage(
				fmt.Sprintf("failed to read block %d of zone %d", blockIndex, zone))
		}
		copied += copy(buffer[copied:], block[position%BlockSize:])
	}
	return nil
}

// zonesInUse lists every zone an inode occupies, including the indirect zones
// themselves. Device files occupy no zones.
func (fs *FileSystem) zonesInUse(inode Inode) ([]ZoneNumber, error) {
	if inode.IsDevice() {
		return nil, nil
	}

	var zones []ZoneNumber
	for _, pointer := range inode.Zones[:NumDirectZones] {
		if pointer != 0 {
			zones = append(zones, ZoneNumber(pointer))
		}
	}

	single := ZoneNumber(inode.Zones[IndirectZoneSlot])
	if single != NoZone {
		zones = append(zones, single)
		pointers, err := fs.readPointerZone(single)
		if err != nil {
			return zones, err
		}
		zones = appendNonHoles(zones, pointers)
	}

	double := ZoneNumber(inode.Zones[DoubleIndirectZoneSlot])
	if double != NoZone {
		zones = append(zones, double)
		outer, err := fs.readPointerZone(double)
		if err != nil {
			return zones, err
		}

		for _, indirect := range outer {
			if indirect == NoZone {
				continue
			}
			zones = append(zones, indirect)
			inner, err := fs.readPointerZone(indirect)
			if err != nil {
				return zones, err
			}
			zones = appendNonHoles(zones, inner)
		}
	}
	return zones, nil
}

func appendNonHoles(zones []ZoneNumber, pointers []ZoneNumber) []ZoneNumber {
	for _, pointer := range pointers {
		if pointer != NoZone {
			zones = append(zones, pointer)
		}
	}
	return zones
}
