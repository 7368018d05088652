package driver

import (
	posixpath "path"

	"github.com/dargueta/minixfs"
	"github.com/dargueta/minixfs/file_systems/minixv1"
)

// objectHandle is an inode together with the absolute path it was reached by.
// The path is needed to resolve relative symlinks and to name things in error
// messages; the inode alone doesn't know where it lives.
type objectHandle struct {
	inode        minixv1.Inode
	absolutePath string
}

func (handle objectHandle) AbsolutePath() string {
	return handle.absolutePath
}

// Name returns the last component of the path, or "/" for the root.
func (handle objectHandle) Name() string {
	return posixpath.Base(handle.absolutePath)
}

// ParentPath is the absolute path of the directory containing the object.
func (handle objectHandle) ParentPath() string {
	return posixpath.Dir(handle.absolutePath)
}

func (handle objectHandle) Stat(fs *minixv1.FileSystem) (minixfs.FileStat, error) {
	return fs.Stat(handle.inode)
}
