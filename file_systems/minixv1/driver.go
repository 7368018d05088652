package minixv1

import (
	"fmt"
	"log"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
)

// FileSystem is a mounted Minix V1 image. Get one from [Mount]; a zero value
// is an unmounted file system and every operation on it fails with
// [minixfs.ErrNotMounted].
//
// Once mounted, a FileSystem never changes, so it's safe for concurrent use as
// long as its [common.BlockSource] is.
type FileSystem struct {
	source     c.BlockSource
	superblock Superblock
	maps       allocationMaps
	root       Inode
	flags      minixfs.MountFlags
	logger     *log.Logger
	mounted    bool
}

// DirListing is one entry of [FileSystem.ListDir]: a name and the inode it
// refers to.
type DirListing struct {
	Name  string
	Inode Inode
}

// Mount validates the image on `source` and anchors it on its root directory.
// Either the whole image checks out and a mounted file system is returned, or
// the mount fails and nothing is.
//
// Failures:
//
//   - [minixfs.ErrIOFailed] if a block can't be read.
//   - [minixfs.ErrInvalidMagic] if the superblock isn't Minix V1.
//   - [minixfs.ErrInconsistentGeometry] if the superblock fields contradict each
//     other or the device is too small.
//   - [minixfs.ErrNotAFilesystem] if the root inode can't be read or isn't a
//     directory.
func Mount(source c.BlockSource, options minixfs.MountOptions) (*FileSystem, error) {
	if source == nil {
		return nil, minixfs.ErrInvalidArgument.WithMessage("block source is nil")
	}

	fs := &FileSystem{
		source: source,
		flags:  options.Flags,
		logger: options.GetLogger(),
	}

	superblockBytes, err := source.ReadBlock(SuperblockBlock, BlockSize)
	if err != nil {
		return nil, minixfs.CastToDriverError(err).WithMessage("failed to read superblock")
	}

	fs.superblock, err = DecodeSuperblock(superblockBytes)
	if err != nil {
		return nil, err
	}

	err = fs.superblock.CheckDeviceSize(source.TotalBlocks(BlockSize))
	if err != nil {
		return nil, err
	}

	fs.maps, err = loadAllocationMaps(source, fs.superblock)
	if err != nil {
		return nil, err
	}

	if !fs.superblock.IsClean() {
		fs.logger.Printf(
			"superblock state is 0x%04x; file system was not cleanly unmounted",
			fs.superblock.State,
		)
	}

	fs.root, err = fs.getInode(RootInode)
	if err != nil {
		return nil, minixfs.ErrNotAFilesystem.Wrap(err)
	}
	if !fs.root.IsDir() {
		return nil, minixfs.ErrNotAFilesystem.WithMessage(
			fmt.Sprintf("root inode has mode 0o%06o, not a directory", fs.root.Mode))
	}

	fs.mounted = true
	return fs, nil
}

func (fs *FileSystem) checkMounted() error {
	if fs == nil || !fs.mounted {
		return minixfs.ErrNotMounted
	}
	return nil
}

// Superblock returns the decoded superblock.
func (fs *FileSystem) Superblock() Superblock {
	return fs.superblock
}

// Flags returns the flags the file system was mounted with.
func (fs *FileSystem) Flags() minixfs.MountFlags {
	return fs.flags
}

// Root returns the root directory.
func (fs *FileSystem) Root() (Inode, error) {
	if err := fs.checkMounted(); err != nil {
		return Inode{}, err
	}
	return fs.root, nil
}

// InodeAllocated reports whether inode `n` is marked as in use in the inode
// bitmap. It fails with [minixfs.ErrOutOfRange] for numbers not on the image.
func (fs *FileSystem) InodeAllocated(n InodeNumber) (bool, error) {
	if err := fs.checkMounted(); err != nil {
		return false, err
	}
	return fs.maps.InodeAllocated(n)
}

// ZoneAllocated reports whether data zone `z` is marked as in use in the zone
// bitmap. It fails with [minixfs.ErrOutOfRange] for anything but a data zone.
func (fs *FileSystem) ZoneAllocated(z ZoneNumber) (bool, error) {
	if err := fs.checkMounted(); err != nil {
		return false, err
	}
	return fs.maps.ZoneAllocated(z)
}

// LookupPath resolves a path, given as its components, from the root
// directory.
func (fs *FileSystem) LookupPath(components []string) (Inode, error) {
	root, err := fs.Root()
	if err != nil {
		return Inode{}, err
	}
	return fs.ResolvePath(root, components)
}

// ResolvePath resolves a path, given as its components, starting from `start`.
// Empty components and "." are ignored. ".." is looked up like any other name,
// which works because every Minix directory has a ".." entry.
//
// It fails with [minixfs.ErrNotFound] at the first missing component, and
// with [minixfs.ErrNotADirectory] if a component before the last one isn't a
// directory. Symbolic links are not followed.
func (fs *FileSystem) ResolvePath(start Inode, components []string) (Inode, error) {
	if err := fs.checkMounted(); err != nil {
		return Inode{}, err
	}

	current := start
	for i, component := range components {
		if component == "" || component == "." {
			continue
		}

		if !current.IsDir() {
			return Inode{}, minixfs.ErrNotADirectory.WithMessage(
				fmt.Sprintf("component %d of %q", i, components))
		}

		number, err := fs.Lookup(current, component)
		if err != nil {
			return Inode{}, err
		}

		current, err = fs.getInode(number)
		if err != nil {
			return Inode{}, err
		}
	}
	return current, nil
}

// ListDir returns the name and inode of every live entry in a directory, in
// on-disk order. "." and ".." are included.
func (fs *FileSystem) ListDir(dir Inode) ([]DirListing, error) {
	entries, err := fs.ReadDirEntries(dir)
	if err != nil {
		return nil, err
	}

	listing := make([]DirListing, 0, len(entries))
	for _, entry := range entries {
		inode, err := fs.getInode(entry.Inode)
		if err != nil {
			return nil, minixfs.CastToDriverError(err).WithMessage(
				fmt.Sprintf("directory entry %q", entry.Name))
		}
		listing = append(listing, DirListing{Name: entry.Name, Inode: inode})
	}
	return listing, nil
}

// Readlink returns the target of a symbolic link. Minix stores it as the
// contents of the link.
func (fs *FileSystem) Readlink(link Inode) (string, error) {
	if err := fs.checkMounted(); err != nil {
		return "", err
	}
	if !link.IsSymlink() {
		return "", minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("inode %d is not a symbolic link", link.Number))
	}

	target, err := fs.Read(link, 0, int(link.Size))
	if err != nil {
		return "", err
	}
	return string(target), nil
}

// FSStat gives usage information for the whole file system, counted from the
// bitmaps. Sizes are in blocks, like statfs(2).
func (fs *FileSystem) FSStat() (minixfs.FSStat, error) {
	if err := fs.checkMounted(); err != nil {
		return minixfs.FSStat{}, err
	}

	sb := fs.superblock
	freeBlocks := uint64(fs.maps.FreeZones()) << sb.LogZoneSize
	return minixfs.FSStat{
		BlockSize:       BlockSize,
		TotalBlocks:     uint64(sb.DataZones()) << sb.LogZoneSize,
		BlocksFree:      freeBlocks,
		BlocksAvailable: freeBlocks,
		Files:           uint64(sb.NumInodes),
		FilesFree:       uint64(fs.maps.FreeInodes()),
		MaxNameLength:   int64(sb.NameLength()),
	}, nil
}
