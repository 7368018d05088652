package common

import (
	"fmt"
	"io"
	"sync"

	"github.com/dargueta/minixfs"
)

// BlockSource is the only way a driver reads from the underlying device. It is
// read-only; drivers never write through it.
//
// Implementations used by concurrent readers must be safe for concurrent use.
type BlockSource interface {
	// ReadBlock returns exactly `blockSize` bytes of block `index`, where
	// block 0 starts at the first byte of the device. Short reads and device
	// errors fail with [minixfs.ErrIOFailed].
	ReadBlock(index PhysicalBlock, blockSize uint) ([]byte, error)
	// TotalBlocks gives the number of whole blocks of the given size on the
	// device. Trailing partial blocks are not counted.
	TotalBlocks(blockSize uint) uint
}

// ReadBlocks reads `count` consecutive blocks starting at `start` and returns
// them as one slice.
func ReadBlocks(
	source BlockSource, start PhysicalBlock, count uint, blockSize uint,
) ([]byte, error) {
	if count == 1 {
		return source.ReadBlock(start, blockSize)
	}

	output := make([]byte, 0, count*blockSize)
	for i := uint(0); i < count; i++ {
		block, err := source.ReadBlock(start+PhysicalBlock(i), blockSize)
		if err != nil {
			return nil, err
		}
		output = append(output, block...)
	}
	return output, nil
}

// CheckBlockBounds fails if block `index` doesn't lie entirely within a device
// of `totalBytes` bytes.
func CheckBlockBounds(index PhysicalBlock, blockSize uint, totalBytes int64) error {
	if blockSize == 0 {
		return minixfs.ErrInvalidArgument.WithMessage("block size can't be 0")
	}

	totalBlocks := uint64(totalBytes) / uint64(blockSize)
	if uint64(index) >= totalBlocks {
		return minixfs.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"invalid block number: %d not in range [0, %d)",
				index,
				totalBlocks,
			),
		)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// ReaderAtSource is a [BlockSource] on top of an [io.ReaderAt]. It's safe for
// concurrent use if the ReaderAt is, which is true of [os.File] and
// [bytes.Reader].
type ReaderAtSource struct {
	reader io.ReaderAt
	size   int64
}

// NewReaderAtSource wraps a ReaderAt whose total size is `size` bytes.
func NewReaderAtSource(reader io.ReaderAt, size int64) *ReaderAtSource {
	return &ReaderAtSource{reader: reader, size: size}
}

func (source *ReaderAtSource) ReadBlock(index PhysicalBlock, blockSize uint) ([]byte, error) {
	err := CheckBlockBounds(index, blockSize, source.size)
	if err != nil {
		return nil, err
	}

	buffer := make([]byte, blockSize)
	offset := int64(index) * int64(blockSize)
	nRead, err := source.reader.ReadAt(buffer, offset)

	// ReadAt is allowed to return io.EOF along with a full buffer if the block
	// is the last one in the stream.
	if nRead == len(buffer) {
		return buffer, nil
	}
	if err == nil || err == io.EOF {
		return nil, minixfs.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"short read of block %d: expected %d bytes, got %d",
				index,
				blockSize,
				nRead,
			),
		)
	}
	return nil, minixfs.ErrIOFailed.Wrap(err)
}

func (source *ReaderAtSource) TotalBlocks(blockSize uint) uint {
	if blockSize == 0 {
		return 0
	}
	return uint(source.size / int64(blockSize))
}

////////////////////////////////////////////////////////////////////////////////

// StreamSource is a [BlockSource] on top of an [io.ReadSeeker]. Seeking and
// reading happen under a lock, so it's safe for concurrent use even though the
// stream itself has a single position.
type StreamSource struct {
	lock   sync.Mutex
	stream io.ReadSeeker
	size   int64
}

// NewStreamSource wraps a stream, determining its size by seeking to the end.
func NewStreamSource(stream io.ReadSeeker) (*StreamSource, error) {
	size, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, minixfs.ErrIOFailed.Wrap(err)
	}
	return &StreamSource{stream: stream, size: size}, nil
}

func (source *StreamSource) ReadBlock(index PhysicalBlock, blockSize uint) ([]byte, error) {
	err := CheckBlockBounds(index, blockSize, source.size)
	if err != nil {
		return nil, err
	}

	source.lock.Lock()
	defer source.lock.Unlock()

	_, err = source.stream.Seek(int64(index)*int64(blockSize), io.SeekStart)
	if err != nil {
		return nil, minixfs.ErrIOFailed.Wrap(err)
	}

	buffer := make([]byte, blockSize)
	_, err = io.ReadFull(source.stream, buffer)
	if err != nil {
		return nil, minixfs.ErrIOFailed.Wrap(
			fmt.Errorf("short read of block %d: %w", index, err),
		)
	}
	return buffer, nil
}

func (source *StreamSource) TotalBlocks(blockSize uint) uint {
	if blockSize == 0 {
		return 0
	}
	return uint(source.size / int64(blockSize))
}
