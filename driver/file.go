package driver

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
	"github.com/dargueta/minixfs/file_systems/common/blockcache"
	"github.com/dargueta/minixfs/file_systems/minixv1"
)

// FileInfo gives detailed information about a file or directory. It implements
// both the [os.FileInfo] and [os.DirEntry] interfaces, and Sys() returns the
// underlying [minixfs.FileStat].
type FileInfo struct {
	stat   minixfs.FileStat
	object objectHandle
}

var _ os.FileInfo = (*FileInfo)(nil)
var _ os.DirEntry = (*FileInfo)(nil)

func (driver *Driver) newFileInfo(object objectHandle) (*FileInfo, error) {
	stat, err := object.Stat(driver.fs)
	if err != nil {
		return nil, err
	}
	return &FileInfo{stat: stat, object: object}, nil
}

// os.FileInfo implementation --------------------------------------------------

// Mode returns the mode flags for the file or directory. It's functionally
// identical to Type(), but used to implement the [os.FileInfo] interface.
func (info *FileInfo) Mode() os.FileMode {
	return info.stat.FileMode()
}

func (info *FileInfo) Size() int64 {
	return info.stat.Size
}

func (info *FileInfo) ModTime() time.Time {
	return info.stat.LastModified
}

func (info *FileInfo) Sys() any {
	return info.stat
}

// os.DirEntry implementation --------------------------------------------------

func (info *FileInfo) Name() string {
	return info.object.Name()
}

// Type returns the type bits of the mode, as [os.DirEntry] requires.
func (info *FileInfo) Type() os.FileMode {
	return info.stat.FileMode().Type()
}

func (info *FileInfo) IsDir() bool {
	return info.stat.IsDir()
}

// Info is part of the [os.DirEntry] interface. It returns the `FileInfo` it was
// called on, since that implements both interfaces.
func (info *FileInfo) Info() (os.FileInfo, error) {
	return info, nil
}

// Extras ----------------------------------------------------------------------

// Stat returns the raw file metadata.
func (info *FileInfo) Stat() minixfs.FileStat {
	return info.stat
}

// AbsolutePath is the path the object was found at.
func (info *FileInfo) AbsolutePath() string {
	return info.object.absolutePath
}

// Inode returns the inode the entry refers to.
func (info *FileInfo) Inode() minixv1.Inode {
	return info.object.inode
}

////////////////////////////////////////////////////////////////////////////////

// File is an open, read-only file. It's a drop-in replacement for the reading
// side of [os.File]: it implements [io.Reader], [io.ReaderAt], [io.Seeker],
// and [io.WriterTo]. Writes fail with [minixfs.ErrReadOnlyFileSystem].
//
// A File is safe for concurrent use, although concurrent calls to Read share
// one position as they do with [os.File].
type File struct {
	owningDriver *Driver
	object       objectHandle
	fileInfo     *FileInfo
	blockCache   *blockcache.BlockCache

	lock     sync.Mutex
	position int64
	closed   bool
}

var _ io.ReadSeekCloser = (*File)(nil)
var _ io.ReaderAt = (*File)(nil)
var _ io.WriterTo = (*File)(nil)

// NewFileFromObjectHandle creates a File reading the contents of `object`.
// Blocks of the file are fetched on demand and cached for as long as the File
// is open.
func NewFileFromObjectHandle(driver *Driver, object objectHandle) (*File, error) {
	info, err := driver.newFileInfo(object)
	if err != nil {
		return nil, err
	}

	fs := driver.fs
	fetchCb := func(index c.PhysicalBlock, buffer []byte) error {
		data, err := fs.Read(object.inode, int64(index)*minixv1.BlockSize, len(buffer))
		if err != nil {
			return err
		}
		// The last block may be short; the rest of `buffer` is already zeroed.
		copy(buffer, data)
		return nil
	}

	size := uint(object.inode.Size)
	numBlocks := (size + minixv1.BlockSize - 1) / minixv1.BlockSize

	return &File{
		owningDriver: driver,
		object:       object,
		fileInfo:     info,
		blockCache:   blockcache.New(minixv1.BlockSize, numBlocks, fetchCb),
	}, nil
}

func (file *File) checkOpen() error {
	if file.closed {
		return minixfs.ErrBadFileDescriptor.WithMessage(
			fmt.Sprintf("%q is closed", file.object.absolutePath))
	}
	return nil
}

// Name returns the absolute path the file was opened by.
func (file *File) Name() string {
	return file.object.absolutePath
}

func (file *File) Stat() (os.FileInfo, error) {
	file.lock.Lock()
	defer file.lock.Unlock()
	if err := file.checkOpen(); err != nil {
		return nil, err
	}
	return file.fileInfo.Info()
}

// Size is the size of the file when it was opened.
func (file *File) Size() int64 {
	return int64(file.object.inode.Size)
}

func (file *File) Close() error {
	file.lock.Lock()
	defer file.lock.Unlock()
	if err := file.checkOpen(); err != nil {
		return err
	}
	file.closed = true
	return nil
}

// ReadAt implements [io.ReaderAt]. It doesn't move the file position.
func (file *File) ReadAt(buffer []byte, offset int64) (int, error) {
	file.lock.Lock()
	closed := file.closed
	file.lock.Unlock()
	if closed {
		return 0, file.checkOpen()
	}
	return file.readAt(buffer, offset)
}

func (file *File) readAt(buffer []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("negative offset %d", offset))
	}

	size := file.Size()
	totalRead := 0

	for totalRead < len(buffer) && offset+int64(totalRead) < size {
		position := offset + int64(totalRead)
		block, err := file.blockCache.ReadBlock(
			c.PhysicalBlock(position/minixv1.BlockSize), minixv1.BlockSize)
		if err != nil {
			return totalRead, err
		}

		chunk := block[position%minixv1.BlockSize:]
		if remaining := size - position; int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		totalRead += copy(buffer[totalRead:], chunk)
	}

	if totalRead < len(buffer) {
		return totalRead, io.EOF
	}
	return totalRead, nil
}

// Read implements [io.Reader]. Like [os.File], it returns [io.EOF] only once
// there's nothing left to read.
func (file *File) Read(buffer []byte) (int, error) {
	file.lock.Lock()
	defer file.lock.Unlock()
	if err := file.checkOpen(); err != nil {
		return 0, err
	}

	if len(buffer) == 0 {
		return 0, nil
	}

	n, err := file.readAt(buffer, file.position)
	file.position += int64(n)
	if n > 0 && err == io.EOF {
		err = nil
	}
	return n, err
}

// Seek implements [io.Seeker]. Seeking past the end of the file is allowed;
// reads from there return [io.EOF].
func (file *File) Seek(offset int64, whence int) (int64, error) {
	file.lock.Lock()
	defer file.lock.Unlock()
	if err := file.checkOpen(); err != nil {
		return 0, err
	}

	var newPosition int64
	switch whence {
	case io.SeekStart:
		newPosition = offset
	case io.SeekCurrent:
		newPosition = file.position + offset
	case io.SeekEnd:
		newPosition = file.Size() + offset
	default:
		return file.position, minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid whence value: %d", whence))
	}

	if newPosition < 0 {
		return file.position, minixfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("can't seek to negative offset %d", newPosition))
	}
	file.position = newPosition
	return newPosition, nil
}

// WriteTo implements [io.WriterTo], copying everything from the current
// position to the end of the file into `writer`.
func (file *File) WriteTo(writer io.Writer) (int64, error) {
	file.lock.Lock()
	defer file.lock.Unlock()
	if err := file.checkOpen(); err != nil {
		return 0, err
	}

	var total int64
	buffer := make([]byte, minixv1.BlockSize)
	for {
		n, readErr := file.readAt(buffer, file.position)
		if n > 0 {
			written, writeErr := writer.Write(buffer[:n])
			file.position += int64(written)
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
		}

		if readErr == io.EOF {
			return total, nil
		} else if readErr != nil {
			return total, readErr
		}
	}
}

// Write always fails; the file system is read-only.
func (file *File) Write(buffer []byte) (int, error) {
	return 0, minixfs.ErrReadOnlyFileSystem.WithMessage(file.object.absolutePath)
}

// ReadDir always fails, since directories can't be opened as files.
func (file *File) ReadDir(n int) ([]os.DirEntry, error) {
	return nil, minixfs.ErrNotADirectory.WithMessage(file.object.absolutePath)
}
