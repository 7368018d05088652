// Package blockcache provides a read-only, block-oriented cache that sits
// between a driver and its [common.BlockSource].
//
// The cache covers a fixed prefix of the device, which for Minix is where the
// superblock, bitmaps, and inode table live. Reads of blocks outside that
// prefix, or with a block size other than the one the cache was created for,
// go straight to the backing source.
//
// All block indices begin at 0.
package blockcache

import (
	"fmt"
	"sync"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. The following guarantees
// apply:
//
// - `blockIndex` is in the range [0, TotalBlocks).
// - `buffer` is always BytesPerBlock bytes.
type FetchBlockCallback func(blockIndex c.PhysicalBlock, buffer []byte) error

// BlockCache is safe for concurrent use. The lock is only held while copying
// into and out of the cache, never during a fetch, so two readers that miss on
// the same block may both fetch it. That's harmless since the data is
// read-only.
type BlockCache struct {
	lock          sync.RWMutex
	loadedBlocks  bitmap.Bitmap
	fetch         FetchBlockCallback
	passthrough   c.BlockSource
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a new BlockCache holding `totalBlocks` blocks, filled on demand
// by `fetchCb`.
func New(bytesPerBlock uint, totalBlocks uint, fetchCb FetchBlockCallback) *BlockCache {
	return &BlockCache{
		loadedBlocks:  bitmap.NewSlice(int(totalBlocks)),
		data:          make([]byte, int(bytesPerBlock*totalBlocks)),
		fetch:         fetchCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
	}
}

// WrapSource creates a [BlockCache] over the first `maxBlocks` blocks of
// `source`, or all of it if the device is smaller. The result is itself a
// [common.BlockSource] and can be passed anywhere the original could.
func WrapSource(source c.BlockSource, bytesPerBlock uint, maxBlocks uint) *BlockCache {
	totalBlocks := source.TotalBlocks(bytesPerBlock)
	if maxBlocks < totalBlocks {
		totalBlocks = maxBlocks
	}

	fetchCb := func(blockIndex c.PhysicalBlock, buffer []byte) error {
		data, err := source.ReadBlock(blockIndex, bytesPerBlock)
		if err != nil {
			return err
		}
		copy(buffer, data)
		return nil
	}

	cache := New(bytesPerBlock, totalBlocks, fetchCb)
	cache.passthrough = source
	return cache
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *BlockCache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// CachedBlocks returns the number of blocks the cache can hold.
func (cache *BlockCache) CachedBlocks() uint {
	return cache.totalBlocks
}

// Size gives the size of the cache, in bytes (not blocks!).
func (cache *BlockCache) Size() int64 {
	return int64(cache.bytesPerBlock) * int64(cache.totalBlocks)
}

// IsLoaded reports whether a block is currently held in the cache.
func (cache *BlockCache) IsLoaded(blockIndex c.PhysicalBlock) bool {
	if uint(blockIndex) >= cache.totalBlocks {
		return false
	}

	cache.lock.RLock()
	defer cache.lock.RUnlock()
	return cache.loadedBlocks.Get(int(blockIndex))
}

// TotalBlocks implements [common.BlockSource]. It reports the size of the
// backing device, not the cache.
func (cache *BlockCache) TotalBlocks(blockSize uint) uint {
	if cache.passthrough != nil {
		return cache.passthrough.TotalBlocks(blockSize)
	}
	if blockSize == 0 {
		return 0
	}
	if blockSize != cache.bytesPerBlock {
		return uint(cache.Size() / int64(blockSize))
	}
	return cache.totalBlocks
}

// ReadBlock implements [common.BlockSource]. The returned slice is a copy and
// may be modified by the caller.
func (cache *BlockCache) ReadBlock(blockIndex c.PhysicalBlock, blockSize uint) ([]byte, error) {
	if blockSize != cache.bytesPerBlock || uint(blockIndex) >= cache.totalBlocks {
		if cache.passthrough != nil {
			return cache.passthrough.ReadBlock(blockIndex, blockSize)
		}
		return nil, minixfs.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"can't read block %d of size %d; cache holds %d blocks of %d bytes",
				blockIndex,
				blockSize,
				cache.totalBlocks,
				cache.bytesPerBlock,
			),
		)
	}

	err := cache.loadBlock(blockIndex)
	if err != nil {
		return nil, err
	}

	output := make([]byte, cache.bytesPerBlock)
	start := uint(blockIndex) * cache.bytesPerBlock

	cache.lock.RLock()
	copy(output, cache.data[start:start+cache.bytesPerBlock])
	cache.lock.RUnlock()
	return output, nil
}

// loadBlock ensures a block is present in the cache, fetching it from storage
// if it's missing.
func (cache *BlockCache) loadBlock(blockIndex c.PhysicalBlock) error {
	if cache.IsLoaded(blockIndex) {
		return nil
	}

	// Load the block from backing storage into a scratch buffer first, so that
	// a failed fetch leaves the cache untouched.
	buffer := make([]byte, cache.bytesPerBlock)
	err := cache.fetch(blockIndex, buffer)
	if err != nil {
		return minixfs.CastToDriverError(err).WithMessage(
			fmt.Sprintf("failed to load block %d from source", blockIndex),
		)
	}

	start := uint(blockIndex) * cache.bytesPerBlock

	cache.lock.Lock()
	defer cache.lock.Unlock()
	copy(cache.data[start:start+cache.bytesPerBlock], buffer)
	cache.loadedBlocks.Set(int(blockIndex), true)
	return nil
}

// LoadAll ensures all missing blocks are loaded from storage into the cache.
func (cache *BlockCache) LoadAll() error {
	for i := uint(0); i < cache.totalBlocks; i++ {
		err := cache.loadBlock(c.PhysicalBlock(i))
		if err != nil {
			return err
		}
	}
	return nil
}
