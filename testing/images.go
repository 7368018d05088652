package minixtest

import (
	"bytes"
	"io"
	"log"
	"testing"

	"github.com/dargueta/minixfs"
	c "github.com/dargueta/minixfs/file_systems/common"
	"github.com/dargueta/minixfs/file_systems/minixv1"
	"github.com/dargueta/minixfs/utilities/compression"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// LoadDiskImage takes a compressed disk image and returns a stream to access the
// uncompressed data.
//
//   - Writes to the stream do not affect `compressedImageBytes`.
//   - The stream's size is fixed to `blockSize * totalBlocks`. Attempting to
//     write past the end of this buffer will trigger an error.
func LoadDiskImage(
	t *testing.T, compressedImageBytes []byte, blockSize, totalBlocks uint,
) io.ReadWriteSeeker {
	require.Greater(t, len(compressedImageBytes), 0, "compressed image is empty")

	imageBytes, err := compression.DecompressImageToBytes(
		bytes.NewReader(compressedImageBytes))
	require.NoError(t, err)

	require.Equal(
		t,
		totalBlocks*blockSize,
		uint(len(imageBytes)),
		"uncompressed image is wrong size",
	)
	return bytesextra.NewReadWriteSeeker(imageBytes)
}

// NewImageStream wraps image bytes in a seekable stream. The stream shares
// memory with `image`.
func NewImageStream(image []byte) io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(image)
}

// NewImageSource returns a [common.BlockSource] reading from `image`.
func NewImageSource(image []byte) c.BlockSource {
	return c.NewReaderAtSource(bytes.NewReader(image), int64(len(image)))
}

// testLogWriter sends log output to the test's log, so that it's only shown
// for failing tests or with -v.
type testLogWriter struct {
	t *testing.T
}

func (writer testLogWriter) Write(p []byte) (int, error) {
	writer.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// NewTestLogger returns a logger that writes to the test's log.
func NewTestLogger(t *testing.T) *log.Logger {
	return log.New(testLogWriter{t: t}, "minixfs: ", 0)
}

// MountImage mounts an in-memory image, failing the test if that's not
// possible.
func MountImage(t *testing.T, image []byte, flags minixfs.MountFlags) *minixv1.FileSystem {
	fs, err := minixv1.Mount(
		NewImageSource(image),
		minixfs.MountOptions{Flags: flags, Logger: NewTestLogger(t)},
	)
	require.NoError(t, err, "failed to mount image")
	require.NotNil(t, fs)
	return fs
}
