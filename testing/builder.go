package minixtest

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/minixfs"
	"github.com/dargueta/minixfs/file_systems/minixv1"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/require"
)

// Timestamp is the modification time given to everything the builder creates.
const Timestamp = 499137600 // 1985-10-26 01:20:00 UTC

// Geometry describes the shape of an image made by [ImageBuilder].
type Geometry struct {
	Inodes      uint16
	Zones       uint16
	LogZoneSize uint16
	Magic       uint16
}

// DefaultGeometry is a 360 KiB image with room for 64 files.
func DefaultGeometry() Geometry {
	return Geometry{
		Inodes: 64,
		Zones:  360,
		Magic:  minixv1.MagicV1,
	}
}

// Dirent is a directory entry to write. An entry with inode 0 is a free slot.
type Dirent struct {
	Name  string
	Inode uint16
}

// ImageBuilder assembles a Minix V1 image in memory. Inodes and zones are
// marked allocated as they're written; data zones are handed out in order.
//
// The superblock is exported so tests can damage it before calling [Image].
type ImageBuilder struct {
	Superblock minixv1.Superblock

	t        *testing.T
	image    []byte
	inodeMap bitmap.Bitmap
	zoneMap  bitmap.Bitmap
	nextZone uint
}

// NewImageBuilder lays out an empty image. The root directory is not created;
// call [ImageBuilder.AddDirectory] with inode [minixv1.RootInode] for that.
func NewImageBuilder(t *testing.T, geometry Geometry) *ImageBuilder {
	imapBlocks := ceilDiv(uint(geometry.Inodes)+1, BitsPerBlock)
	zmapBlocks := ceilDiv(uint(geometry.Zones)+1, BitsPerBlock)
	inodeBlocks := ceilDiv(uint(geometry.Inodes), minixv1.InodesPerBlock)
	metadataEnd := minixv1.InodeMapStart + imapBlocks + zmapBlocks + inodeBlocks
	firstDataZone := ceilDiv(metadataEnd, uint(1)<<geometry.LogZoneSize)

	sb := minixv1.Superblock{
		NumInodes:     geometry.Inodes,
		NumZones:      geometry.Zones,
		IMapBlocks:    uint16(imapBlocks),
		ZMapBlocks:    uint16(zmapBlocks),
		FirstDataZone: uint16(firstDataZone),
		LogZoneSize:   geometry.LogZoneSize,
		Magic:         geometry.Magic,
		State:         minixv1.StateValid,
	}

	maxSize := sb.MaxAddressableSize()
	if maxSize > math.MaxInt32 {
		maxSize = math.MaxInt32
	}
	sb.MaxSize = uint32(maxSize)

	builder := &ImageBuilder{
		Superblock: sb,
		t:          t,
		image:      make([]byte, (uint(geometry.Zones)<<geometry.LogZoneSize)*minixv1.BlockSize),
		inodeMap:   bitmap.New(int(imapBlocks * BitsPerBlock)),
		zoneMap:    bitmap.New(int(zmapBlocks * BitsPerBlock)),
		nextZone:   firstDataZone,
	}

	// Bit 0 of each map is reserved and always set.
	builder.inodeMap.Set(0, true)
	builder.zoneMap.Set(0, true)
	return builder
}

// BitsPerBlock is the number of bitmap bits in one block.
const BitsPerBlock = minixv1.BlockSize * 8

func ceilDiv(a, b uint) uint {
	return (a + b - 1) / b
}

// Image writes out the superblock and bitmaps and returns the finished image.
// The builder can keep being used afterwards; the returned slice is a copy.
func (builder *ImageBuilder) Image() []byte {
	sb := builder.Superblock
	builder.writeAt(minixv1.SuperblockBlock*minixv1.BlockSize, sb.Encode())

	imapLength := uint(sb.IMapBlocks) * minixv1.BlockSize
	builder.writeAt(
		minixv1.InodeMapStart*minixv1.BlockSize,
		builder.inodeMap.Data(false)[:imapLength],
	)

	zmapLength := uint(sb.ZMapBlocks) * minixv1.BlockSize
	builder.writeAt(sb.ZoneMapStart()*minixv1.BlockSize, builder.zoneMap.Data(false)[:zmapLength])

	output := make([]byte, len(builder.image))
	copy(output, builder.image)
	return output
}

func (builder *ImageBuilder) writeAt(offset uint, data []byte) {
	require.LessOrEqualf(
		builder.t,
		offset+uint(len(data)),
		uint(len(builder.image)),
		"write of %d bytes at %d runs off the end of the image",
		len(data),
		offset,
	)
	copy(builder.image[offset:], data)
}

// SetInodeAllocated sets or clears the bitmap bit of inode `n`.
func (builder *ImageBuilder) SetInodeAllocated(n uint16, allocated bool) {
	builder.inodeMap.Set(int(n), allocated)
}

// SetZoneAllocated sets or clears the bitmap bit of data zone `zone`.
func (builder *ImageBuilder) SetZoneAllocated(zone uint16, allocated bool) {
	bit := int(zone) - int(builder.Superblock.FirstDataZone) + 1
	require.Greaterf(builder.t, bit, 0, "zone %d is not a data zone", zone)
	builder.zoneMap.Set(bit, allocated)
}

// AllocZone returns the next unused data zone and marks it allocated.
func (builder *ImageBuilder) AllocZone() uint16 {
	require.Lessf(
		builder.t,
		builder.nextZone,
		uint(builder.Superblock.NumZones),
		"image is out of zones",
	)
	zone := uint16(builder.nextZone)
	builder.nextZone++
	builder.SetZoneAllocated(zone, true)
	return zone
}

// WriteZone copies `data` into a zone, starting `offset` bytes in.
func (builder *ImageBuilder) WriteZone(zone uint16, offset uint, data []byte) {
	zoneSize := builder.Superblock.ZoneSize()
	require.LessOrEqual(
		builder.t, offset+uint(len(data)), zoneSize, "data doesn't fit in one zone")
	builder.writeAt(uint(zone)*zoneSize+offset, data)
}

// WriteZonePointers fills the start of an indirect zone with zone pointers.
func (builder *ImageBuilder) WriteZonePointers(zone uint16, pointers []uint16) {
	buffer := make([]byte, len(pointers)*minixv1.ZonePointerSize)
	writer := bytewriter.New(buffer)
	require.NoError(builder.t, binary.Write(writer, binary.LittleEndian, pointers))
	builder.WriteZone(zone, 0, buffer)
}

// WriteInode stores an inode record as-is and marks the inode allocated.
func (builder *ImageBuilder) WriteInode(n uint16, inode minixv1.RawInode) {
	require.GreaterOrEqual(builder.t, n, uint16(1), "inode numbers start at 1")
	require.LessOrEqual(builder.t, n, builder.Superblock.NumInodes, "inode number too big")

	index := uint(n) - 1
	block := builder.Superblock.InodeTableStart() + index/minixv1.InodesPerBlock
	offset := block*minixv1.BlockSize + (index%minixv1.InodesPerBlock)*minixv1.InodeSize

	buffer := make([]byte, minixv1.InodeSize)
	writer := bytewriter.New(buffer)
	require.NoError(builder.t, binary.Write(writer, binary.LittleEndian, inode))

	builder.writeAt(offset, buffer)
	builder.SetInodeAllocated(n, true)
}

// WriteData stores file contents in newly allocated zones and returns the
// zone pointers for the inode, allocating indirect zones as needed. Zones that
// would be all zeroes are left as holes.
func (builder *ImageBuilder) WriteData(data []byte) [minixv1.NumZonePointers]uint16 {
	var zones [minixv1.NumZonePointers]uint16
	zoneSize := builder.Superblock.ZoneSize()
	perZone := builder.Superblock.PointersPerZone()

	var single []uint16
	var double [][]uint16
	emptyZone := make([]byte, zoneSize)

	for i := uint(0); i*zoneSize < uint(len(data)); i++ {
		end := (i + 1) * zoneSize
		if end > uint(len(data)) {
			end = uint(len(data))
		}
		chunk := data[i*zoneSize : end]
		if bytes.Equal(chunk, emptyZone[:len(chunk)]) {
			continue
		}

		zone := builder.AllocZone()
		builder.WriteZone(zone, 0, chunk)

		switch {
		case i < minixv1.NumDirectZones:
			zones[i] = zone
		case i-minixv1.NumDirectZones < perZone:
			if single == nil {
				single = make([]uint16, perZone)
			}
			single[i-minixv1.NumDirectZones] = zone
		default:
			remainder := i - minixv1.NumDirectZones - perZone
			require.Less(builder.t, remainder, perZone*perZone, "file is too big")
			if double == nil {
				double = make([][]uint16, perZone)
			}
			outer := remainder / perZone
			if double[outer] == nil {
				double[outer] = make([]uint16, perZone)
			}
			double[outer][remainder%perZone] = zone
		}
	}

	if single != nil {
		zones[minixv1.IndirectZoneSlot] = builder.AllocZone()
		builder.WriteZonePointers(zones[minixv1.IndirectZoneSlot], single)
	}

	if double != nil {
		outerPointers := make([]uint16, perZone)
		for i, inner := range double {
			if inner == nil {
				continue
			}
			outerPointers[i] = builder.AllocZone()
			builder.WriteZonePointers(outerPointers[i], inner)
		}
		zones[minixv1.DoubleIndirectZoneSlot] = builder.AllocZone()
		builder.WriteZonePointers(zones[minixv1.DoubleIndirectZoneSlot], outerPointers)
	}
	return zones
}

// AddFile creates a regular file with the given permission bits and contents.
func (builder *ImageBuilder) AddFile(n uint16, permissions uint16, data []byte) {
	builder.WriteInode(n, minixv1.RawInode{
		Mode:   minixfs.S_IFREG | permissions,
		Size:   uint32(len(data)),
		Time:   Timestamp,
		Nlinks: 1,
		Zones:  builder.WriteData(data),
	})
}

// AddSymlink creates a symbolic link pointing to `target`.
func (builder *ImageBuilder) AddSymlink(n uint16, target string) {
	builder.WriteInode(n, minixv1.RawInode{
		Mode:   minixfs.S_IFLNK | 0o777,
		Size:   uint32(len(target)),
		Time:   Timestamp,
		Nlinks: 1,
		Zones:  builder.WriteData([]byte(target)),
	})
}

// AddDevice creates a character device with the given device number.
func (builder *ImageBuilder) AddDevice(n uint16, device uint16) {
	var zones [minixv1.NumZonePointers]uint16
	zones[0] = device

	builder.WriteInode(n, minixv1.RawInode{
		Mode:   minixfs.S_IFCHR | 0o600,
		Time:   Timestamp,
		Nlinks: 1,
		Zones:  zones,
	})
}

// EncodeDirents serializes directory entries for this image's name length.
// Names longer than the field are truncated, as Minix does.
func (builder *ImageBuilder) EncodeDirents(entries []Dirent) []byte {
	nameLength := builder.Superblock.NameLength()
	direntSize := builder.Superblock.DirentSize()
	output := make([]byte, uint(len(entries))*direntSize)

	for i, entry := range entries {
		raw := output[uint(i)*direntSize : uint(i+1)*direntSize]
		binary.LittleEndian.PutUint16(raw, entry.Inode)

		name := []byte(entry.Name)
		if uint(len(name)) > nameLength {
			name = name[:nameLength]
		}
		copy(raw[2:], name)
	}
	return output
}

// AddDirectory creates a directory holding "." and "..", then `entries`.
// The root directory is its own parent.
func (builder *ImageBuilder) AddDirectory(n uint16, parent uint16, entries ...Dirent) {
	allEntries := append([]Dirent{{".", n}, {"..", parent}}, entries...)
	builder.AddRawDirectory(n, builder.EncodeDirents(allEntries))
}

// AddRawDirectory creates a directory whose contents are exactly `contents`.
func (builder *ImageBuilder) AddRawDirectory(n uint16, contents []byte) {
	builder.WriteInode(n, minixv1.RawInode{
		Mode:   minixfs.S_IFDIR | 0o755,
		Size:   uint32(len(contents)),
		Time:   Timestamp,
		Nlinks: 2,
		Zones:  builder.WriteData(contents),
	})
}
