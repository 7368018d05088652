package minixfs

import (
	"os"
	"time"
)

// ReadingDriver is the interface for drivers supporting read operations on
// path strings. It's what host glue (a FUSE shim, a CLI) talks to.
type ReadingDriver interface {
	Readlink(path string) (string, error)
	SameFile(fi1, fi2 os.FileInfo) bool
	ReadDir(path string) ([]os.FileInfo, error)
	// ReadFile return the contents of the file at the given path.
	ReadFile(path string) ([]byte, error)
	// Stat returns information about the directory entry at the given path,
	// following symbolic links.
	Stat(path string) (FileStat, error)
	// Lstat returns the same information as Stat but does not follow a
	// symbolic link in the last path component.
	Lstat(path string) (FileStat, error)
}

// FileStat is the metadata of a single file system object.
//
// Minix V1 stores a single timestamp per inode; drivers report it as the
// access, modification, and change time.
type FileStat struct {
	InodeNumber  uint64
	Nlinks       uint64
	Mode         uint32
	Uid          uint32
	Gid          uint32
	Rdev         uint64
	Size         int64
	BlockSize    int64
	NumBlocks    int64
	LastAccessed time.Time
	LastModified time.Time
	LastChanged  time.Time
}

func (stat FileStat) IsDir() bool {
	return stat.Mode&S_IFMT == S_IFDIR
}

func (stat FileStat) IsFile() bool {
	return stat.Mode&S_IFMT == S_IFREG
}

func (stat FileStat) IsSymlink() bool {
	return stat.Mode&S_IFMT == S_IFLNK
}

// FileMode converts the raw Unix mode into an [os.FileMode].
func (stat FileStat) FileMode() os.FileMode {
	mode := os.FileMode(stat.Mode & 0o777)

	switch stat.Mode & S_IFMT {
	case S_IFDIR:
		mode |= os.ModeDir
	case S_IFLNK:
		mode |= os.ModeSymlink
	case S_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case S_IFBLK:
		mode |= os.ModeDevice
	case S_IFIFO:
		mode |= os.ModeNamedPipe
	case S_IFSOCK:
		mode |= os.ModeSocket
	}

	if stat.Mode&S_ISUID != 0 {
		mode |= os.ModeSetuid
	}
	if stat.Mode&S_ISGID != 0 {
		mode |= os.ModeSetgid
	}
	if stat.Mode&S_ISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// FSStat gives file system-wide usage information, like statfs(2).
type FSStat struct {
	BlockSize       int64  `yaml:"block_size"`
	TotalBlocks     uint64 `yaml:"total_blocks"`
	BlocksFree      uint64 `yaml:"blocks_free"`
	BlocksAvailable uint64 `yaml:"blocks_available"`
	Files           uint64 `yaml:"files"`
	FilesFree       uint64 `yaml:"files_free"`
	MaxNameLength   int64  `yaml:"max_name_length"`
}

// IOFlags are the flags passed to OpenFile. They're the same values as the
// os.O_* constants.
type IOFlags int

const (
	O_RDONLY = IOFlags(os.O_RDONLY)
	O_WRONLY = IOFlags(os.O_WRONLY)
	O_RDWR   = IOFlags(os.O_RDWR)
	O_APPEND = IOFlags(os.O_APPEND)
	O_CREATE = IOFlags(os.O_CREATE)
	O_EXCL   = IOFlags(os.O_EXCL)
	O_SYNC   = IOFlags(os.O_SYNC)
	O_TRUNC  = IOFlags(os.O_TRUNC)
)

// RequiresWritePerm returns true if any flag would need the image to be
// writable.
func (flags IOFlags) RequiresWritePerm() bool {
	accessMode := flags & (O_RDONLY | O_WRONLY | O_RDWR)
	if accessMode != O_RDONLY {
		return true
	}
	return flags&(O_APPEND|O_CREATE|O_TRUNC) != 0
}
