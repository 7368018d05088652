package minixv1

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
)

// DirEntry is one live entry of a directory.
type DirEntry struct {
	Name  string
	Inode InodeNumber
	// Offset is the position of the entry within the directory, in bytes.
	Offset int64
}

// DirReader iterates over the entries of one directory. It reads lazily, one
// block at a time, and its only state is a byte cursor. A DirReader must not
// be shared between goroutines; open one per caller instead.
type DirReader struct {
	fs     *FileSystem
	dir    Inode
	cursor int64
	end    int64
	strict bool

	// block caches the last block read and the directory offset it starts
	// at, or -1 if nothing is cached.
	block       []byte
	blockOffset int64
}

// OpenDir returns a reader positioned at the first entry of a directory.
func (fs *FileSystem) OpenDir(dir Inode) (*DirReader, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}
	return fs.openDir(dir, fs.flags.Strict())
}

func (fs *FileSystem) openDir(dir Inode, strict bool) (*DirReader, error) {
	if !dir.IsDir() {
		return nil, minixfs.ErrNotADirectory.WithMessage(
			fmt.Sprintf("inode %d has mode 0o%06o", dir.Number, dir.Mode))
	}

	// A trailing partial entry can't hold anything meaningful.
	direntSize := int64(fs.superblock.DirentSize())
	size := int64(dir.Size)

	return &DirReader{
		fs:          fs,
		dir:         dir,
		end:         size - size%direntSize,
		strict:      strict,
		blockOffset: -1,
	}, nil
}

// Offset gives the position of the next entry to be examined, in bytes from
// the start of the directory.
func (reader *DirReader) Offset() int64 {
	return reader.cursor
}

// SeekTo moves the cursor to `cursor`, which must be a multiple of the entry
// size no greater than the directory's size. SeekTo(0) restarts iteration.
func (reader *DirReader) SeekTo(cursor int64) error {
	direntSize := int64(reader.fs.superblock.DirentSize())
	if cursor < 0 || cursor > reader.end || cursor%direntSize != 0 {
		return minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"directory cursor %d must be a multiple of %d in [0, %d]",
				cursor,
				direntSize,
				reader.end,
			),
		)
	}
	reader.cursor = cursor
	return nil
}

// Next returns the next live entry, or [io.EOF] once there are none left.
//
// Free slots (inode 0) and holes are skipped. An entry pointing past the end
// of the inode table is skipped and logged, or in strict mode fails with
// [minixfs.ErrFileSystemCorrupted]. Either way the cursor moves past it, so
// the caller can keep going.
func (reader *DirReader) Next() (DirEntry, error) {
	sb := reader.fs.superblock
	direntSize := int64(sb.DirentSize())
	zoneSize := int64(sb.ZoneSize())

	for reader.cursor < reader.end {
		blockOffset := reader.cursor - reader.cursor%BlockSize
		if blockOffset != reader.blockOffset {
			zone, err := reader.fs.resolveZone(reader.dir, uint64(reader.cursor))
			if err != nil {
				return DirEntry{}, err
			}

			if zone == NoZone {
				// Skip the rest of the hole in one go.
				reader.cursor += zoneSize - reader.cursor%zoneSize
				if reader.cursor > reader.end {
					reader.cursor = reader.end
				}
				continue
			}

			blockIndex := sb.zoneToBlock(zone) + uint((reader.cursor%zoneSize)/BlockSize)
			block, err := reader.fs.source.ReadBlock(c.PhysicalBlock(blockIndex), BlockSize)
			if err != nil {
				return DirEntry{}, minixfs.CastToDriverError(err).WithMessage(
					fmt.Sprintf(
						"failed to read block %d of directory inode %d",
						blockIndex,
						reader.dir.Number,
					),
				)
			}
			reader.block = block
			reader.blockOffset = blockOffset
		}

		entryOffset := reader.cursor
		start := entryOffset - blockOffset
		raw := reader.block[start : start+direntSize]
		reader.cursor += direntSize

		inodeNumber := binary.LittleEndian.Uint16(raw[0:2])
		if inodeNumber == 0 {
			continue
		}

		name := raw[2:]
		if nul := bytes.IndexByte(name, 0); nul >= 0 {
			name = name[:nul]
		}

		if uint(inodeNumber) > uint(sb.NumInodes) {
			message := fmt.Sprintf(
				"directory inode %d, offset %d: entry %q points to inode %d, past the last inode %d",
				reader.dir.Number,
				entryOffset,
				name,
				inodeNumber,
				sb.NumInodes,
			)
			if reader.strict {
				return DirEntry{}, minixfs.ErrFileSystemCorrupted.WithMessage(message)
			}
			reader.fs.logger.Printf("skipping bad directory entry: %s", message)
			continue
		}

		return DirEntry{
			Name:   string(name),
			Inode:  InodeNumber(inodeNumber),
			Offset: entryOffset,
		}, nil
	}
	return DirEntry{}, io.EOF
}

// ReadDirEntries returns every live entry of a directory in on-disk order,
// including "." and "..". Each call starts from scratch, so two calls on the
// same directory return the same entries.
func (fs *FileSystem) ReadDirEntries(dir Inode) ([]DirEntry, error) {
	reader, err := fs.OpenDir(dir)
	if err != nil {
		return nil, err
	}

	entries := []DirEntry{}
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return entries, nil
		} else if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

// Lookup finds the inode number of the entry called `name` in a directory.
// Matching is exact and case-sensitive, and stops at the first match. Names
// longer than the name field can't be stored on this image and never match.
func (fs *FileSystem) Lookup(dir Inode, name string) (InodeNumber, error) {
	reader, err := fs.OpenDir(dir)
	if err != nil {
		return 0, err
	}

	if name == "" || uint(len(name)) > fs.superblock.NameLength() {
		return 0, minixfs.ErrNotFound.WithMessage(
			fmt.Sprintf("%q in directory inode %d", name, dir.Number))
	}

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return 0, minixfs.ErrNotFound.WithMessage(
				fmt.Sprintf("%q in directory inode %d", name, dir.Number))
		} else if err != nil {
			return 0, err
		}

		if entry.Name == name {
			return entry.Inode, nil
		}
	}
}
