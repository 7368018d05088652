package blockdevice_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
	"github.com/dargueta/minixfs/file_systems/common/blockdevice"
	"github.com/dargueta/minixfs/file_systems/minixv1"
	minixtest "github.com/dargueta/minixfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempImage(t *testing.T, image []byte) string {
	path := filepath.Join(t.TempDir(), "image.img")
	require.NoError(t, os.WriteFile(path, image, 0o600))
	return path
}

func openDevice(t *testing.T, image []byte) *blockdevice.Device {
	device, err := blockdevice.Open(writeTempImage(t, image))
	require.NoError(t, err)
	t.Cleanup(func() { device.Close() })
	return device
}

func TestDevice__ReadAllBlocks(t *testing.T) {
	const blockSize = 512
	image := minixtest.CreateRandomImage(blockSize, 37, t)
	device := openDevice(t, image)

	assert.EqualValues(t, len(image), device.Size())
	assert.EqualValues(t, 37, device.TotalBlocks(blockSize))
	assert.EqualValues(t, 18, device.TotalBlocks(1024))
	assert.EqualValues(t, 0, device.TotalBlocks(0))

	for i := uint(0); i < 37; i++ {
		block, err := device.ReadBlock(c.PhysicalBlock(i), blockSize)
		require.NoError(t, err, "block %d", i)
		assert.Equal(t, image[i*blockSize:(i+1)*blockSize], block, "block %d", i)
	}
}

func TestDevice__OutOfBounds(t *testing.T) {
	device := openDevice(t, minixtest.CreateRandomImage(512, 3, t))

	_, err := device.ReadBlock(3, 512)
	assert.ErrorIs(t, err, minixfs.ErrIOFailed)

	// 1536 bytes hold one whole 1 KiB block, not two.
	_, err = device.ReadBlock(1, 1024)
	assert.ErrorIs(t, err, minixfs.ErrIOFailed)

	_, err = device.ReadBlock(0, 0)
	assert.ErrorIs(t, err, minixfs.ErrInvalidArgument)
}

func TestDevice__Close(t *testing.T) {
	device, err := blockdevice.Open(writeTempImage(t, minixtest.CreateRandomImage(512, 2, t)))
	require.NoError(t, err)

	require.NoError(t, device.Close())
	assert.ErrorIs(t, device.Close(), minixfs.ErrBadFileDescriptor)

	_, err = device.ReadBlock(0, 512)
	assert.ErrorIs(t, err, minixfs.ErrBadFileDescriptor)
}

func TestOpen__Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := blockdevice.Open(filepath.Join(dir, "missing.img"))
	assert.ErrorIs(t, err, minixfs.ErrNotFound)

	_, err = blockdevice.Open(dir)
	assert.ErrorIs(t, err, minixfs.ErrIsADirectory)
}

func TestDevice__Mount(t *testing.T) {
	device := openDevice(t, minixtest.BuildSampleImage(t, minixtest.DefaultGeometry()))

	fs, err := minixv1.Mount(device, minixfs.MountOptions{Logger: minixtest.NewTestLogger(t)})
	require.NoError(t, err)

	hello, err := fs.LookupPath([]string{"hello.txt"})
	require.NoError(t, err)
	data, err := fs.Read(hello, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, minixtest.SampleHelloContents, string(data))
}

func TestDevice__Concurrent(t *testing.T) {
	const blockSize = 1024
	image := minixtest.CreateRandomImage(blockSize, 64, t)
	device := openDevice(t, image)

	var wg sync.WaitGroup
	errs := make(chan error, 8*64)
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 64; i++ {
				index := uint((i + worker*7) % 64)
				block, err := device.ReadBlock(c.PhysicalBlock(index), blockSize)
				if err != nil {
					errs <- err
					continue
				}
				if string(block) != string(image[index*blockSize:(index+1)*blockSize]) {
					errs <- minixfs.ErrIOFailed.WithMessage("wrong data")
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
