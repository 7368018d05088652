package minixv1

import (
	"fmt"
	"io"

	"github.com/dargueta/minixfs"
	"github.com/hashicorp/go-multierror"
)

// Check walks the whole directory tree from the root and cross-checks it
// against the bitmaps. It reports:
//
//   - inodes that can't be read or are corrupt,
//   - directory entries pointing to inodes marked free or past the inode table,
//   - zones in use by a file but marked free,
//   - corrupt indirect zones.
//
// Every problem is collected into one [multierror.Error]; damage in one part of
// the tree doesn't stop the rest from being checked. A clean image returns nil.
// Check never modifies the image.
func Check(fs *FileSystem) error {
	if err := fs.checkMounted(); err != nil {
		return err
	}

	checker := consistencyChecker{
		fs:      fs,
		visited: make(map[InodeNumber]bool),
	}
	checker.checkInode(fs.root, "/")
	return checker.problems.ErrorOrNil()
}

type consistencyChecker struct {
	fs       *FileSystem
	visited  map[InodeNumber]bool
	problems *multierror.Error
}

func (checker *consistencyChecker) report(path string, err error) {
	checker.problems = multierror.Append(
		checker.problems, fmt.Errorf("%s: %w", path, err))
}

func (checker *consistencyChecker) checkInode(inode Inode, path string) {
	if checker.visited[inode.Number] {
		return
	}
	checker.visited[inode.Number] = true

	fs := checker.fs
	allocated, err := fs.maps.InodeAllocated(inode.Number)
	if err != nil {
		checker.report(path, err)
	} else if !allocated {
		checker.report(
			path,
			minixfs.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf("inode %d is in use but marked free", inode.Number)),
		)
	}

	// Report what we could enumerate even if an indirect zone is bad.
	zones, err := fs.zonesInUse(inode)
	if err != nil {
		checker.report(path, err)
	}
	for _, zone := range zones {
		allocated, err := fs.maps.ZoneAllocated(zone)
		if err != nil {
			checker.report(path, err)
		} else if !allocated {
			checker.report(
				path,
				minixfs.ErrFileSystemCorrupted.WithMessage(
					fmt.Sprintf("zone %d is in use by inode %d but marked free", zone, inode.Number)),
			)
		}
	}

	if inode.IsDir() {
		checker.checkDirectory(inode, path)
	}
}

func (checker *consistencyChecker) checkDirectory(dir Inode, path string) {
	fs := checker.fs

	// Always strict, so that entries the lenient policy would skip are
	// reported.
	reader, err := fs.openDir(dir, true)
	if err != nil {
		checker.report(path, err)
		return
	}

	for {
		cursor := reader.Offset()
		entry, err := reader.Next()
		if err == io.EOF {
			return
		} else if err != nil {
			checker.report(path, err)
			if reader.Offset() == cursor {
				// The reader couldn't get past the failure, so the rest of the
				// directory is unreachable.
				return
			}
			continue
		}

		if entry.Name == "." || entry.Name == ".." {
			continue
		}

		childPath := joinPath(path, entry.Name)
		child, err := fs.getInode(entry.Inode)
		if err != nil {
			checker.report(childPath, err)
			continue
		}
		checker.checkInode(child, childPath)
	}
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
