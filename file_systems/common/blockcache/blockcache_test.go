package blockcache_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
	"github.com/dargueta/minixfs/file_systems/common/blockcache"
	minixtest "github.com/dargueta/minixfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test block fetch functionality with no trickery such as reading past the end
// of the image.
func TestBlockCache__Fetch__Basic(t *testing.T) {
	// Disk image is 64 blocks, 128 bytes per block.
	rawBlocks := minixtest.CreateRandomImage(128, 64, t)
	cache := minixtest.CreateDefaultCache(128, 64, rawBlocks, t)

	for i := c.PhysicalBlock(0); i < 64; i++ {
		block, err := cache.ReadBlock(i, 128)
		if err != nil {
			t.Errorf("failed to read block %d of [0, 64): %s", i, err.Error())
			continue
		}

		start := i * 128
		assert.Equalf(t, rawBlocks[start:start+128], block, "block %d is wrong", i)
		assert.Truef(t, cache.IsLoaded(i), "block %d not marked as loaded", i)
	}
}

// Trying to read past the end of a cache with nothing behind it must fail.
func TestBlockCache__Fetch__ReadPastEnd(t *testing.T) {
	cache := minixtest.CreateDefaultCache(512, 16, nil, t)

	_, err := cache.ReadBlock(0, 512)
	assert.NoError(t, err, "failed to read first block")

	_, err = cache.ReadBlock(15, 512)
	assert.NoError(t, err, "failed to read last block")

	_, err = cache.ReadBlock(16, 512)
	assert.ErrorIs(t, err, minixfs.ErrIOFailed)
	assert.False(t, cache.IsLoaded(16))

	// Wrong block size with no backing source.
	_, err = cache.ReadBlock(0, 1024)
	assert.ErrorIs(t, err, minixfs.ErrIOFailed)
}

// Modifying a returned block must not change what the cache returns next time.
func TestBlockCache__ReturnsCopies(t *testing.T) {
	rawBlocks := minixtest.CreateRandomImage(256, 4, t)
	cache := minixtest.CreateDefaultCache(256, 4, rawBlocks, t)

	first, err := cache.ReadBlock(1, 256)
	require.NoError(t, err)
	for i := range first {
		first[i] ^= 0xff
	}

	second, err := cache.ReadBlock(1, 256)
	require.NoError(t, err)
	assert.Equal(t, rawBlocks[256:512], second)
}

func TestBlockCache__WrapSource__FetchesOnce(t *testing.T) {
	image := minixtest.CreateRandomImage(1024, 32, t)
	source := minixtest.NewCountingSource(minixtest.NewImageSource(image))
	cache := blockcache.WrapSource(source, 1024, 8)

	assert.EqualValues(t, 8, cache.CachedBlocks())
	assert.EqualValues(t, 32, cache.TotalBlocks(1024), "should report the device size")

	for round := 0; round < 3; round++ {
		for i := c.PhysicalBlock(0); i < 8; i++ {
			block, err := cache.ReadBlock(i, 1024)
			require.NoError(t, err)
			assert.Equal(t, image[i*1024:(i+1)*1024], block)
		}
	}
	assert.EqualValues(t, 8, source.Reads(), "cached blocks were fetched more than once")

	// Blocks past the cached prefix go straight through every time.
	for round := 0; round < 2; round++ {
		block, err := cache.ReadBlock(20, 1024)
		require.NoError(t, err)
		assert.Equal(t, image[20*1024:21*1024], block)
	}
	assert.EqualValues(t, 10, source.Reads())

	// So do reads with a different block size.
	block, err := cache.ReadBlock(3, 512)
	require.NoError(t, err)
	assert.Equal(t, image[3*512:4*512], block)
	assert.EqualValues(t, 11, source.Reads())
}

func TestBlockCache__WrapSource__SmallDevice(t *testing.T) {
	image := minixtest.CreateRandomImage(1024, 4, t)
	cache := blockcache.WrapSource(minixtest.NewImageSource(image), 1024, 100)
	assert.EqualValues(t, 4, cache.CachedBlocks())

	require.NoError(t, cache.LoadAll())
	for i := c.PhysicalBlock(0); i < 4; i++ {
		assert.True(t, cache.IsLoaded(i))
	}
}

// A failed fetch must not leave the block marked as loaded.
func TestBlockCache__FailedFetchNotCached(t *testing.T) {
	image := minixtest.CreateRandomImage(1024, 4, t)
	source := minixtest.NewCountingSource(minixtest.NewImageSource(image))
	source.FailBlock(2)
	cache := blockcache.WrapSource(source, 1024, 4)

	_, err := cache.ReadBlock(2, 1024)
	assert.ErrorIs(t, err, minixfs.ErrIOFailed)
	assert.False(t, cache.IsLoaded(2))
	assert.Error(t, cache.LoadAll())
}

func TestBlockCache__Concurrent(t *testing.T) {
	image := minixtest.CreateRandomImage(1024, 16, t)
	cache := blockcache.WrapSource(minixtest.NewImageSource(image), 1024, 16)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 32; i++ {
				index := (i + worker) % 16
				block, err := cache.ReadBlock(c.PhysicalBlock(index), 1024)
				if assert.NoError(t, err) {
					assert.True(t, bytes.Equal(image[index*1024:(index+1)*1024], block))
				}
			}
		}(worker)
	}
	wg.Wait()
}
