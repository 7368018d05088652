package minixv1

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/minixfs"
	"github.com/hashicorp/go-multierror"
	"github.com/noxer/bytewriter"
)

// BlockSize is the size of one block on a V1 image. It's fixed by the format.
const BlockSize = 1024

const SuperblockBlock = 1
const InodeMapStart = 2
const RootInode InodeNumber = 1

const MagicV1 = 0x137F
const MagicV1LongNames = 0x138F

// Values of Superblock.State.
const StateValid = 0x0001
const StateErrors = 0x0002

const InodeSize = 32
const InodesPerBlock = BlockSize / InodeSize
const ZonePointerSize = 2
const NumDirectZones = 7
const NumZonePointers = 9
const IndirectZoneSlot = 7
const DoubleIndirectZoneSlot = 8

// MaxLogZoneSize bounds the zone size to 256 KiB so that a single zone can
// always be held in memory.
const MaxLogZoneSize = 8

const bitsPerBlock = BlockSize * 8

// InodeNumber is the number of an inode, starting from 1. Get one from
// [Superblock.InodeNumber] to have it checked against the image.
type InodeNumber uint16

// ZoneNumber is the number of a zone relative to the beginning of the image. 0
// is a hole. Get one from [Superblock.ZoneNumber] to have it checked against
// the image.
type ZoneNumber uint16

// NoZone is the zone number of a hole.
const NoZone ZoneNumber = 0

// Superblock is the on-disk superblock, in the order it's stored. All fields
// are little-endian.
type Superblock struct {
	NumInodes     uint16 `yaml:"inodes"`
	NumZones      uint16 `yaml:"zones"`
	IMapBlocks    uint16 `yaml:"imap_blocks"`
	ZMapBlocks    uint16 `yaml:"zmap_blocks"`
	FirstDataZone uint16 `yaml:"first_data_zone"`
	LogZoneSize   uint16 `yaml:"log_zone_size"`
	MaxSize       uint32 `yaml:"max_size"`
	Magic         uint16 `yaml:"magic"`
	State         uint16 `yaml:"state"`
	// Zones is the 32-bit zone count used by V2. V1 ignores it.
	Zones uint32 `yaml:"zones_v2"`
}

// SuperblockSize is the number of meaningful bytes at the start of the
// superblock. The rest of the block is unused.
var SuperblockSize = binary.Size(Superblock{})

// DecodeSuperblock decodes and validates a superblock from the raw bytes of
// its block.
func DecodeSuperblock(data []byte) (Superblock, error) {
	var sb Superblock

	if len(data) < SuperblockSize {
		return sb, minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"superblock needs at least %d bytes, got %d",
				SuperblockSize,
				len(data),
			),
		)
	}

	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &sb)
	if err != nil {
		return sb, minixfs.ErrIOFailed.Wrap(err)
	}

	if sb.Magic != MagicV1 && sb.Magic != MagicV1LongNames {
		return Superblock{}, minixfs.ErrInvalidMagic.WithMessage(
			fmt.Sprintf(
				"expected 0x%04x or 0x%04x, got 0x%04x",
				MagicV1,
				MagicV1LongNames,
				sb.Magic,
			),
		)
	}

	err = sb.Validate()
	if err != nil {
		return Superblock{}, err
	}
	return sb, nil
}

// Encode is the inverse of [DecodeSuperblock]. It returns a full block with the
// unused remainder zeroed.
func (sb Superblock) Encode() []byte {
	output := make([]byte, BlockSize)
	writer := bytewriter.New(output)

	// The struct is far smaller than the block so this can't fail.
	_ = binary.Write(writer, binary.LittleEndian, sb)
	return output
}

// Validate checks the cross-field invariants of the superblock, and returns
// every violation it finds in one [minixfs.ErrInconsistentGeometry].
func (sb Superblock) Validate() error {
	var problems *multierror.Error

	if sb.NumInodes < 1 {
		problems = multierror.Append(problems, fmt.Errorf("inode count is 0"))
	}
	if sb.NumZones < 1 {
		problems = multierror.Append(problems, fmt.Errorf("zone count is 0"))
	}
	if sb.IMapBlocks < 1 {
		problems = multierror.Append(problems, fmt.Errorf("inode bitmap is 0 blocks"))
	}
	if sb.ZMapBlocks < 1 {
		problems = multierror.Append(problems, fmt.Errorf("zone bitmap is 0 blocks"))
	}
	if sb.MaxSize == 0 {
		problems = multierror.Append(problems, fmt.Errorf("maximum file size is 0"))
	}
	if sb.LogZoneSize > MaxLogZoneSize {
		problems = multierror.Append(
			problems,
			fmt.Errorf("log2 zone size %d exceeds %d", sb.LogZoneSize, MaxLogZoneSize),
		)
		// The remaining checks shift by this value, and are meaningless if
		// it's absurd.
		return minixfs.ErrInconsistentGeometry.Wrap(problems)
	}

	metadataEnd := sb.InodeTableStart() + sb.InodeTableBlocks()
	if uint(sb.FirstDataZone)<<sb.LogZoneSize < metadataEnd {
		problems = multierror.Append(
			problems,
			fmt.Errorf(
				"first data zone %d (block %d) overlaps metadata ending at block %d",
				sb.FirstDataZone,
				uint(sb.FirstDataZone)<<sb.LogZoneSize,
				metadataEnd,
			),
		)
	}
	if sb.FirstDataZone >= sb.NumZones {
		problems = multierror.Append(
			problems,
			fmt.Errorf(
				"first data zone %d not less than zone count %d",
				sb.FirstDataZone,
				sb.NumZones,
			),
		)
	}

	imapBits := uint(sb.IMapBlocks) * bitsPerBlock
	if imapBits < uint(sb.NumInodes)+1 {
		problems = multierror.Append(
			problems,
			fmt.Errorf(
				"inode bitmap holds %d bits, need %d",
				imapBits,
				uint(sb.NumInodes)+1,
			),
		)
	}

	zmapBits := uint(sb.ZMapBlocks) * bitsPerBlock
	if sb.FirstDataZone < sb.NumZones {
		neededZoneBits := uint(sb.NumZones-sb.FirstDataZone) + 1
		if zmapBits < neededZoneBits {
			problems = multierror.Append(
				problems,
				fmt.Errorf("zone bitmap holds %d bits, need %d", zmapBits, neededZoneBits),
			)
		}
	}

	if problems != nil {
		return minixfs.ErrInconsistentGeometry.Wrap(problems)
	}
	return nil
}

// CheckDeviceSize fails if the zones the superblock claims don't fit on a
// device of `totalBlocks` blocks.
func (sb Superblock) CheckDeviceSize(totalBlocks uint) error {
	needed := uint64(sb.NumZones) << sb.LogZoneSize
	if needed > uint64(totalBlocks) {
		return minixfs.ErrInconsistentGeometry.WithMessage(
			fmt.Sprintf(
				"%d zones need %d blocks but the device only has %d",
				sb.NumZones,
				needed,
				totalBlocks,
			),
		)
	}
	return nil
}

// InodeNumber converts `n` into an [InodeNumber], failing if there is no such
// inode on this image.
func (sb Superblock) InodeNumber(n uint) (InodeNumber, error) {
	if n < 1 || n > uint(sb.NumInodes) {
		return 0, minixfs.ErrInvalidInode.WithMessage(
			fmt.Sprintf("%d not in range [1, %d]", n, sb.NumInodes),
		)
	}
	return InodeNumber(n), nil
}

// ZoneNumber converts `n` into a [ZoneNumber]. 0 is always accepted as a hole;
// anything else must be a data zone on this image.
func (sb Superblock) ZoneNumber(n uint) (ZoneNumber, error) {
	if n == 0 {
		return NoZone, nil
	}
	if n < uint(sb.FirstDataZone) || n >= uint(sb.NumZones) {
		return 0, minixfs.ErrOutOfRange.WithMessage(
			fmt.Sprintf(
				"zone %d not in range [%d, %d)",
				n,
				sb.FirstDataZone,
				sb.NumZones,
			),
		)
	}
	return ZoneNumber(n), nil
}

func (sb Superblock) BlocksPerZone() uint {
	return 1 << sb.LogZoneSize
}

// ZoneSize gives the size of one zone, in bytes.
func (sb Superblock) ZoneSize() uint {
	return BlockSize << sb.LogZoneSize
}

// ZoneMapStart gives the index of the first block of the zone bitmap.
func (sb Superblock) ZoneMapStart() uint {
	return InodeMapStart + uint(sb.IMapBlocks)
}

// InodeTableStart gives the index of the first block of the inode table.
func (sb Superblock) InodeTableStart() uint {
	return InodeMapStart + uint(sb.IMapBlocks) + uint(sb.ZMapBlocks)
}

func (sb Superblock) InodeTableBlocks() uint {
	return (uint(sb.NumInodes) + InodesPerBlock - 1) / InodesPerBlock
}

// PointersPerZone is the number of zone pointers an indirect zone holds.
func (sb Superblock) PointersPerZone() uint {
	return sb.ZoneSize() / ZonePointerSize
}

// NameLength is the size of the name field of a directory entry.
func (sb Superblock) NameLength() uint {
	if sb.Magic == MagicV1LongNames {
		return 30
	}
	return 14
}

// DirentSize is the size of one directory entry, in bytes.
func (sb Superblock) DirentSize() uint {
	return sb.NameLength() + 2
}

// MaxAddressableSize is the largest file size the zone pointers of one inode
// can describe. It can be larger than MaxSize.
func (sb Superblock) MaxAddressableSize() uint64 {
	pointers := uint64(sb.PointersPerZone())
	totalZones := NumDirectZones + pointers + pointers*pointers
	return totalZones * uint64(sb.ZoneSize())
}

// IsClean returns true if the file system was cleanly unmounted and has no
// recorded errors.
func (sb Superblock) IsClean() bool {
	return sb.State&StateValid != 0 && sb.State&StateErrors == 0
}

// DataZones gives the number of zones available for file data.
func (sb Superblock) DataZones() uint {
	if sb.FirstDataZone >= sb.NumZones {
		return 0
	}
	return uint(sb.NumZones - sb.FirstDataZone)
}

// zoneToBlock gives the index of the first block of a zone.
func (sb Superblock) zoneToBlock(zone ZoneNumber) uint {
	return uint(zone) << sb.LogZoneSize
}
