package minixv1

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
)

// RawInode is a V1 inode exactly as it's stored on disk.
type RawInode struct {
	Mode uint16
	Uid  uint16
	Size uint32
	// Time is the last modification time, in seconds since the Unix epoch.
	// It's the only timestamp V1 keeps.
	Time   uint32
	Gid    uint8
	Nlinks uint8
	// Zones holds seven direct zone pointers, then the single-indirect and
	// double-indirect pointers. For device files, Zones[0] is the device
	// number instead.
	Zones [NumZonePointers]uint16
}

// Inode is a decoded inode along with its number. It's a value; copies are
// independent and nothing ever modifies one.
type Inode struct {
	RawInode
	Number InodeNumber
}

func (inode Inode) IsDir() bool {
	return inode.Mode&minixfs.S_IFMT == minixfs.S_IFDIR
}

func (inode Inode) IsFile() bool {
	return inode.Mode&minixfs.S_IFMT == minixfs.S_IFREG
}

func (inode Inode) IsSymlink() bool {
	return inode.Mode&minixfs.S_IFMT == minixfs.S_IFLNK
}

// IsDevice returns true for character and block special files, whose zone
// pointers don't point to zones.
func (inode Inode) IsDevice() bool {
	format := inode.Mode & minixfs.S_IFMT
	return format == minixfs.S_IFCHR || format == minixfs.S_IFBLK
}

// LastModified converts the on-disk timestamp.
func (inode Inode) LastModified() time.Time {
	return time.Unix(int64(inode.Time), 0)
}

// inodeLocation gives the block an inode lives in and its offset within it.
func (sb Superblock) inodeLocation(n InodeNumber) (c.PhysicalBlock, uint) {
	index := uint(n) - 1
	block := sb.InodeTableStart() + index/InodesPerBlock
	return c.PhysicalBlock(block), (index % InodesPerBlock) * InodeSize
}

// GetInode reads and validates inode `n`.
//
// It fails with [minixfs.ErrInvalidInode] if `n` is not in [1, inode count],
// and with [minixfs.ErrFileSystemCorrupted] if the record is impossible on
// this image: a size over the maximum, or a zone pointer outside the data
// zones. With [minixfs.MountFlagsStrict], an inode whose bitmap bit is clear
// is also treated as corrupt.
func (fs *FileSystem) GetInode(n InodeNumber) (Inode, error) {
	if err := fs.checkMounted(); err != nil {
		return Inode{}, err
	}
	return fs.getInode(n)
}

func (fs *FileSystem) getInode(n InodeNumber) (Inode, error) {
	number, err := fs.superblock.InodeNumber(uint(n))
	if err != nil {
		return Inode{}, err
	}

	blockIndex, offset := fs.superblock.inodeLocation(number)
	block, err := fs.source.ReadBlock(blockIndex, BlockSize)
	if err != nil {
		return Inode{}, minixfs.CastToDriverError(err).WithMessage(
			fmt.Sprintf("failed to read inode %d", number))
	}

	inode := Inode{Number: number}
	err = binary.Read(
		bytes.NewReader(block[offset:offset+InodeSize]),
		binary.LittleEndian,
		&inode.RawInode,
	)
	if err != nil {
		return Inode{}, minixfs.ErrIOFailed.Wrap(err)
	}

	err = fs.validateInode(inode)
	if err != nil {
		return Inode{}, err
	}
	return inode, nil
}

func (fs *FileSystem) validateInode(inode Inode) error {
	sb := fs.superblock

	if inode.Size > sb.MaxSize {
		return minixfs.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf(
				"inode %d: size %d exceeds maximum file size %d",
				inode.Number,
				inode.Size,
				sb.MaxSize,
			),
		)
	}

	if inode.IsDevice() {
		if inode.Size != 0 {
			return minixfs.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf("inode %d: device has nonzero size %d", inode.Number, inode.Size))
		}
	} else {
		for i, pointer := range inode.Zones {
			_, err := sb.ZoneNumber(uint(pointer))
			if err != nil {
				return minixfs.ErrFileSystemCorrupted.WithMessage(
					fmt.Sprintf("inode %d: zone pointer %d: %s", inode.Number, i, err.Error()))
			}
		}
	}

	if fs.flags.Strict() {
		allocated, err := fs.maps.InodeAllocated(inode.Number)
		if err != nil {
			return err
		}
		if !allocated {
			return minixfs.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf("inode %d is in use but marked free in the inode bitmap", inode.Number))
		}
	}
	return nil
}

// Stat returns the metadata of an inode.
func (fs *FileSystem) Stat(inode Inode) (minixfs.FileStat, error) {
	if err := fs.checkMounted(); err != nil {
		return minixfs.FileStat{}, err
	}

	var rdev uint64
	if inode.IsDevice() {
		rdev = uint64(inode.Zones[0])
	}

	timestamp := inode.LastModified()
	return minixfs.FileStat{
		InodeNumber:  uint64(inode.Number),
		Nlinks:       uint64(inode.Nlinks),
		Mode:         uint32(inode.Mode),
		Uid:          uint32(inode.Uid),
		Gid:          uint32(inode.Gid),
		Rdev:         rdev,
		Size:         int64(inode.Size),
		BlockSize:    BlockSize,
		NumBlocks:    (int64(inode.Size) + BlockSize - 1) / BlockSize,
		LastAccessed: timestamp,
		LastModified: timestamp,
		LastChanged:  timestamp,
	}, nil
}
