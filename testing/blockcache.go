package minixtest

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
	"github.com/dargueta/minixfs/file_systems/common/blockcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CreateRandomImage creates an image with the given number of blocks and bytes
// per block. It is guaranteed to either return a valid slice or fail the test
// and abort.
func CreateRandomImage(bytesPerBlock, totalBlocks uint, t *testing.T) []byte {
	backingData := make([]byte, bytesPerBlock*totalBlocks)

	_, err := rand.Read(backingData)
	require.NoErrorf(
		t,
		err,
		"failed to initialize %d blocks of size %d with random bytes",
		totalBlocks,
		bytesPerBlock,
	)
	return backingData
}

// CreateDefaultCache creates a block cache over `backingData` with a fetch
// handler that fails the test if the cache asks for a block outside
// [0, totalBlocks). Pass nil for `backingData` to get random data.
func CreateDefaultCache(
	bytesPerBlock,
	totalBlocks uint,
	backingData []byte,
	t *testing.T,
) *blockcache.BlockCache {
	if backingData == nil {
		backingData = CreateRandomImage(bytesPerBlock, totalBlocks, t)
	}

	fetchCallback := func(blockIndex c.PhysicalBlock, buffer []byte) error {
		if blockIndex >= c.PhysicalBlock(totalBlocks) {
			message := fmt.Sprintf(
				"attempted to read outside bounds: block %d not in [0, %d)",
				blockIndex,
				totalBlocks,
			)
			t.Error(message)
			return minixfs.ErrIOFailed.WithMessage(message)
		}

		start := uint(blockIndex) * bytesPerBlock
		copy(buffer, backingData[start:start+bytesPerBlock])
		return nil
	}

	cache := blockcache.New(bytesPerBlock, totalBlocks, fetchCallback)
	assert.EqualValues(t, bytesPerBlock, cache.BytesPerBlock(), "wrong bytes per block")
	assert.EqualValues(t, totalBlocks, cache.CachedBlocks(), "wrong total blocks")
	assert.EqualValues(t, bytesPerBlock*totalBlocks, cache.Size(), "total size is wrong")
	return cache
}

// CountingSource is a [common.BlockSource] that counts the reads made through
// it, and can be told to fail reads of particular blocks.
type CountingSource struct {
	Source c.BlockSource
	reads  int64

	lock         sync.Mutex
	failedBlocks map[c.PhysicalBlock]bool
}

func NewCountingSource(source c.BlockSource) *CountingSource {
	return &CountingSource{
		Source:       source,
		failedBlocks: make(map[c.PhysicalBlock]bool),
	}
}

// FailBlock makes every later read of `index` fail with [minixfs.ErrIOFailed].
func (source *CountingSource) FailBlock(index c.PhysicalBlock) {
	source.lock.Lock()
	defer source.lock.Unlock()
	source.failedBlocks[index] = true
}

// Reads returns the number of calls to ReadBlock so far.
func (source *CountingSource) Reads() int64 {
	return atomic.LoadInt64(&source.reads)
}

func (source *CountingSource) ReadBlock(index c.PhysicalBlock, blockSize uint) ([]byte, error) {
	atomic.AddInt64(&source.reads, 1)

	source.lock.Lock()
	failed := source.failedBlocks[index]
	source.lock.Unlock()

	if failed {
		return nil, minixfs.ErrIOFailed.WithMessage(
			fmt.Sprintf("simulated read failure on block %d", index))
	}
	return source.Source.ReadBlock(index, blockSize)
}

func (source *CountingSource) TotalBlocks(blockSize uint) uint {
	return source.Source.TotalBlocks(blockSize)
}
