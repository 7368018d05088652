// Package driver puts a path-based interface like the [os] package's on top of
// a mounted [minixv1.FileSystem]. It handles working directories and symbolic
// links, neither of which the file system layer knows about.
package driver

import (
	"fmt"
	"os"
	posixpath "path"
	"path/filepath"
	"strings"

	"github.com/dargueta/minixfs"
	"github.com/dargueta/minixfs/file_systems/minixv1"
)

// maxSymlinkHops is the most symbolic links followed while resolving a single
// path. Linux uses the same limit.
const maxSymlinkHops = 40

// Driver is the path-level view of one mounted file system.
//
// Reads are safe from multiple goroutines. Chdir is not, and must not be called
// while other goroutines are resolving relative paths.
type Driver struct {
	fs             *minixv1.FileSystem
	workingDirPath string
}

var _ minixfs.ReadingDriver = (*Driver)(nil)

// New creates a [Driver] for a mounted file system. The working directory
// starts at the root.
func New(fs *minixv1.FileSystem) *Driver {
	return &Driver{
		fs:             fs,
		workingDirPath: "/",
	}
}

// FileSystem returns the file system the driver reads from.
func (driver *Driver) FileSystem() *minixv1.FileSystem {
	return driver.fs
}

// NormalizePath turns `path` into a clean absolute path, interpreting relative
// paths from the working directory. ".." is handled lexically, so it isn't
// affected by symbolic links.
func (driver *Driver) NormalizePath(path string) string {
	path = posixpath.Clean(filepath.ToSlash(path))
	if path == "." {
		path = driver.workingDirPath
	}
	if posixpath.IsAbs(path) {
		return path
	}
	return posixpath.Join(driver.workingDirPath, path)
}

// pathResolver carries the state of one path lookup. The hop count is shared by
// every symbolic link followed along the way, including those in intermediate
// directories, so that no lookup can run forever.
type pathResolver struct {
	driver       *Driver
	originalPath string
	hops         int
}

func (driver *Driver) newResolver(path string) *pathResolver {
	return &pathResolver{driver: driver, originalPath: path}
}

// resolveSymlink dereferences `object` if it's a symlink, following multiple
// levels of indirection if needed to get to a file system object. If `object`
// isn't a symlink this is a no-op and returns the handle unmodified.
func (resolver *pathResolver) resolveSymlink(object objectHandle) (objectHandle, error) {
	if !object.inode.IsSymlink() {
		return object, nil
	}

	// Symbolic links can form cycles, so keep track of every path visited. If
	// a symlink resolves to a path already seen, we found a loop and must fail.
	pathCache := map[string]bool{object.absolutePath: true}
	currentPath := object.absolutePath

	for object.inode.IsSymlink() {
		resolver.hops++
		if resolver.hops > maxSymlinkHops {
			return objectHandle{}, minixfs.ErrLinkCycleDetected.WithMessage(
				fmt.Sprintf(
					"resolving %q: followed more than %d symbolic links",
					resolver.originalPath,
					maxSymlinkHops,
				),
			)
		}

		target, err := resolver.driver.fs.Readlink(object.inode)
		if err != nil {
			return objectHandle{}, minixfs.CastToDriverError(err).WithMessage(
				fmt.Sprintf(
					"can't resolve path %q, failed to read symlink %q",
					resolver.originalPath,
					currentPath,
				),
			)
		}

		// Relative targets are relative to the directory holding the link, not
		// to the working directory.
		nextPath := target
		if !posixpath.IsAbs(nextPath) {
			nextPath = posixpath.Join(object.ParentPath(), nextPath)
		}
		nextPath = posixpath.Clean(nextPath)

		if pathCache[nextPath] {
			return objectHandle{}, minixfs.ErrLinkCycleDetected.WithMessage(
				fmt.Sprintf(
					"found cycle resolving symlink %q: hit %q twice",
					resolver.originalPath,
					nextPath,
				),
			)
		}
		pathCache[nextPath] = true

		// Get the object at the next path but don't dereference it.
		object, err = resolver.lookupNoFollow(nextPath)
		if err != nil {
			return objectHandle{}, err
		}
		currentPath = nextPath
	}

	return object, nil
}

// lookupNoFollow resolves a normalized absolute path to an object handle. It
// follows symbolic links for intermediate directories, but does *not* follow
// the final path component if it's a symbolic link.
func (resolver *pathResolver) lookupNoFollow(path string) (objectHandle, error) {
	if path == "/" || path == "" {
		root, err := resolver.driver.fs.Root()
		if err != nil {
			return objectHandle{}, err
		}
		return objectHandle{inode: root, absolutePath: "/"}, nil
	}

	parentPath, baseName := posixpath.Split(path)
	parentObject, err := resolver.lookupFollowingLink(posixpath.Clean(parentPath))
	if err != nil {
		return objectHandle{}, err
	}

	if !parentObject.inode.IsDir() {
		return objectHandle{}, minixfs.ErrNotADirectory.WithMessage(
			fmt.Sprintf(
				"cannot resolve path %q: %q is not a directory",
				resolver.originalPath,
				parentObject.absolutePath,
			),
		)
	}

	return resolver.driver.getObjectInDir(baseName, parentObject)
}

// lookupFollowingLink is like [pathResolver.lookupNoFollow] except that it
// always follows the last path component if it's a symlink.
func (resolver *pathResolver) lookupFollowingLink(path string) (objectHandle, error) {
	object, err := resolver.lookupNoFollow(path)
	if err != nil {
		return objectHandle{}, err
	}
	return resolver.resolveSymlink(object)
}

// getObjectAtPath resolves `path` from the working directory, following a
// symlink in the last component if `follow` is set.
func (driver *Driver) getObjectAtPath(path string, follow bool) (objectHandle, error) {
	absPath := driver.NormalizePath(path)
	resolver := driver.newResolver(absPath)
	if follow {
		return resolver.lookupFollowingLink(absPath)
	}
	return resolver.lookupNoFollow(absPath)
}

// getObjectInDir looks up a single name in a directory. The parent's path is
// used to build the child's, so ".." is resolved through the directory entry
// but named lexically.
func (driver *Driver) getObjectInDir(
	baseName string, parentObject objectHandle,
) (objectHandle, error) {
	absPath := posixpath.Join(parentObject.absolutePath, baseName)

	if uint(len(baseName)) > driver.fs.Superblock().NameLength() {
		return objectHandle{}, minixfs.ErrNameTooLong.WithMessage(
			fmt.Sprintf(
				"%q is longer than %d characters",
				baseName,
				driver.fs.Superblock().NameLength(),
			),
		)
	}

	number, err := driver.fs.Lookup(parentObject.inode, baseName)
	if err != nil {
		return objectHandle{}, minixfs.CastToDriverError(err).WithMessage(absPath)
	}

	inode, err := driver.fs.GetInode(number)
	if err != nil {
		return objectHandle{}, minixfs.CastToDriverError(err).WithMessage(absPath)
	}
	return objectHandle{inode: inode, absolutePath: absPath}, nil
}

// getContentsOfObject returns the contents of an object as it exists on the
// file system, regardless of whether it's a file or directory. Symbolic links
// are not followed.
func (driver *Driver) getContentsOfObject(object objectHandle) ([]byte, error) {
	return driver.fs.Read(object.inode, 0, int(object.inode.Size))
}

// OpenFile opens a file for reading. Any flag that would need write access
// fails with [minixfs.ErrReadOnlyFileSystem], whether or not the file exists.
func (driver *Driver) OpenFile(path string, flags minixfs.IOFlags) (*File, error) {
	absPath := driver.NormalizePath(path)

	if flags.RequiresWritePerm() {
		return nil, minixfs.ErrReadOnlyFileSystem.WithMessage(
			fmt.Sprintf("can't open %q for writing: image is mounted read-only", absPath),
		)
	}

	object, err := driver.getObjectAtPath(absPath, true)
	if err != nil {
		return nil, err
	}

	if object.inode.IsDir() {
		return nil, minixfs.ErrIsADirectory.WithMessage(absPath)
	}
	return NewFileFromObjectHandle(driver, object)
}

// Open opens a file for reading, like [os.Open].
func (driver *Driver) Open(path string) (*File, error) {
	return driver.OpenFile(path, minixfs.O_RDONLY)
}

// Chdir changes the working directory, following symbolic links.
func (driver *Driver) Chdir(path string) error {
	object, err := driver.getObjectAtPath(path, true)
	if err != nil {
		return err
	}
	return driver.chdirToObject(object)
}

// chdirToObject is like [Driver.Chdir] except it uses an object.
func (driver *Driver) chdirToObject(object objectHandle) error {
	if !object.inode.IsDir() {
		return minixfs.ErrNotADirectory.WithMessage(object.absolutePath)
	}
	driver.workingDirPath = object.absolutePath
	return nil
}

// Getwd returns the working directory as an absolute path. The error will
// always be nil; it's only there for compatibility with [os.Getwd].
func (driver *Driver) Getwd() (string, error) {
	return driver.workingDirPath, nil
}

func (driver *Driver) ReadFile(path string) ([]byte, error) {
	object, err := driver.getObjectAtPath(path, true)
	if err != nil {
		return nil, err
	}
	if object.inode.IsDir() {
		return nil, minixfs.ErrIsADirectory.WithMessage(object.absolutePath)
	}
	return driver.getContentsOfObject(object)
}

// SameFile reports whether two [FileInfo]s from this driver describe the same
// inode. Anything else is never the same file.
func (driver *Driver) SameFile(fi1, fi2 os.FileInfo) bool {
	stat1, ok1 := fi1.Sys().(minixfs.FileStat)
	stat2, ok2 := fi2.Sys().(minixfs.FileStat)
	return ok1 && ok2 && stat1.InodeNumber == stat2.InodeNumber
}

func (driver *Driver) Stat(path string) (minixfs.FileStat, error) {
	object, err := driver.getObjectAtPath(path, true)
	if err != nil {
		return minixfs.FileStat{}, err
	}
	return object.Stat(driver.fs)
}

func (driver *Driver) Lstat(path string) (minixfs.FileStat, error) {
	object, err := driver.getObjectAtPath(path, false)
	if err != nil {
		return minixfs.FileStat{}, err
	}
	return object.Stat(driver.fs)
}

// StatInfo is [Driver.Stat] returning an [os.FileInfo].
func (driver *Driver) StatInfo(path string) (*FileInfo, error) {
	object, err := driver.getObjectAtPath(path, true)
	if err != nil {
		return nil, err
	}
	return driver.newFileInfo(object)
}

// ReadDir lists a directory, following symbolic links. "." and ".." are left
// out, and the rest are in on-disk order.
func (driver *Driver) ReadDir(path string) ([]os.FileInfo, error) {
	directory, err := driver.getObjectAtPath(path, true)
	if err != nil {
		return nil, err
	}

	infos, err := driver.readDir(directory)
	if err != nil {
		return nil, err
	}

	output := make([]os.FileInfo, len(infos))
	for i, info := range infos {
		output[i] = info
	}
	return output, nil
}

// ReadDirEntries is [Driver.ReadDir] returning [os.DirEntry] values, like
// [os.ReadDir].
func (driver *Driver) ReadDirEntries(path string) ([]os.DirEntry, error) {
	directory, err := driver.getObjectAtPath(path, true)
	if err != nil {
		return nil, err
	}

	infos, err := driver.readDir(directory)
	if err != nil {
		return nil, err
	}

	output := make([]os.DirEntry, len(infos))
	for i, info := range infos {
		output[i] = info
	}
	return output, nil
}

// readDir implements [Driver.ReadDir] for any directory object handle.
func (driver *Driver) readDir(directory objectHandle) ([]*FileInfo, error) {
	listing, err := driver.fs.ListDir(directory.inode)
	if err != nil {
		return nil, minixfs.CastToDriverError(err).WithMessage(directory.absolutePath)
	}

	output := make([]*FileInfo, 0, len(listing))
	for _, dirent := range listing {
		// Ignore "." and ".." entries
		if dirent.Name == "." || dirent.Name == ".." {
			continue
		}

		info, err := driver.newFileInfo(objectHandle{
			inode:        dirent.Inode,
			absolutePath: posixpath.Join(directory.absolutePath, dirent.Name),
		})
		if err != nil {
			return nil, err
		}
		output = append(output, info)
	}
	return output, nil
}

// Readlink returns the target of a symbolic link without following it.
func (driver *Driver) Readlink(path string) (string, error) {
	object, err := driver.getObjectAtPath(path, false)
	if err != nil {
		return "", err
	}

	if !object.inode.IsSymlink() {
		return "", minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q is not a symlink", object.absolutePath),
		)
	}
	return driver.fs.Readlink(object.inode)
}

// Walk calls `walkFn` for `root` and everything below it, in on-disk order,
// like [filepath.Walk]. Symbolic links are reported but not followed. If
// `walkFn` returns [filepath.SkipDir] for a directory, its contents are
// skipped.
func (driver *Driver) Walk(root string, walkFn filepath.WalkFunc) error {
	object, err := driver.getObjectAtPath(root, false)
	if err != nil {
		return walkFn(driver.NormalizePath(root), nil, err)
	}

	info, err := driver.newFileInfo(object)
	if err != nil {
		return walkFn(object.absolutePath, nil, err)
	}

	err = driver.walk(object, info, walkFn)
	if err == filepath.SkipDir {
		return nil
	}
	return err
}

func (driver *Driver) walk(object objectHandle, info *FileInfo, walkFn filepath.WalkFunc) error {
	if !object.inode.IsDir() {
		return walkFn(object.absolutePath, info, nil)
	}

	err := walkFn(object.absolutePath, info, nil)
	if err != nil {
		return err
	}

	children, err := driver.readDir(object)
	if err != nil {
		return walkFn(object.absolutePath, info, err)
	}

	for _, child := range children {
		err = driver.walk(child.object, child, walkFn)
		if err != nil {
			if err == filepath.SkipDir && !child.IsDir() {
				// Skipping from a file skips the rest of its directory.
				return nil
			} else if err != filepath.SkipDir {
				return err
			}
		}
	}
	return nil
}

// SplitPath breaks an absolute path into its components, for
// [minixv1.FileSystem.LookupPath].
func SplitPath(path string) []string {
	path = strings.Trim(posixpath.Clean("/"+path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
