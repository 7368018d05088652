package compression_test

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	c "github.com/dargueta/minixfs/utilities/compression"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imageC9nTestRunner struct {
	Name     string
	Function func(t *testing.T, d []byte)
}

type imageC9nTestData struct {
	Name string
	Data []byte
}

func TestRoundTripImageCompression(t *testing.T) {
	testRunners := []imageC9nTestRunner{
		{"to_stream", runRoundTripCompressionTest},
		{"to_bytes", runRoundTripCompressionToBytesTest},
	}

	randomData := make([]byte, 119)
	rand.Read(randomData)

	testData := []imageC9nTestData{
		{"homogenous", bytes.Repeat([]byte{100}, 9174)},
		{"mostly_zeroes", append(make([]byte, 4096), randomData...)},
		{"empty", []byte{}},
		{"heterogenous", randomData},
	}

	for _, runner := range testRunners {
		t.Run(
			runner.Name,
			func(tSub *testing.T) {
				for _, data := range testData {
					tSub.Run(
						data.Name,
						func(tSubSub *testing.T) {
							runner.Function(tSubSub, data.Data)
						},
					)
				}
			},
		)
	}
}

func runRoundTripCompressionTest(t *testing.T, sourceData []byte) {
	sourceDataReader := bytes.NewReader(sourceData)

	compressedBuffer := make([]byte, 10240)
	compressedWriter := bytewriter.New(compressedBuffer)

	compressedSize, err := c.CompressImage(sourceDataReader, compressedWriter)
	require.NoError(t, err, "unexpected error while compressing")
	t.Logf("image size after compression: %d -> %d", len(sourceData), compressedSize)

	decompressedBuffer := make([]byte, len(sourceData))
	decompressedWriter := bytewriter.New(decompressedBuffer)
	compressedReader := bytes.NewReader(compressedBuffer[:compressedSize])

	n, err := c.DecompressImage(compressedReader, decompressedWriter)
	require.NoError(t, err, "unexpected error while decompressing")
	assert.EqualValues(t, len(sourceData), n, "decompressed image has wrong size")
	assert.Equal(t, sourceData, decompressedBuffer, "decompressed data is wrong")
}

func runRoundTripCompressionToBytesTest(t *testing.T, originalData []byte) {
	compressed, err := c.CompressImageToBytes(bytes.NewReader(originalData))
	require.NoError(t, err, "error while compressing")
	t.Logf("image compressed %d -> %d", len(originalData), len(compressed))

	decompressed, err := c.DecompressImageToBytes(bytes.NewReader(compressed))
	require.NoError(t, err, "error while decompressing")

	require.NotNil(t, decompressed, "decompressed data must never be nil")
	assert.Equal(
		t, len(originalData), len(decompressed), "decompressed data length is wrong")
	assert.Equal(t, originalData, decompressed, "decompressed data is wrong")
}

func TestDecompressImageToBytes__EmptyIsNotNil(t *testing.T) {
	compressed, err := c.CompressImageToBytes(bytes.NewReader(nil))
	require.NoError(t, err)

	decompressed, err := c.DecompressImageToBytes(bytes.NewReader(compressed))
	require.NoError(t, err)
	assert.NotNil(t, decompressed)
	assert.Empty(t, decompressed)
}

func TestIsCompressedImagePath(t *testing.T) {
	assert.True(t, c.IsCompressedImagePath("images/minix-1440.rle.gz"))
	assert.False(t, c.IsCompressedImagePath("images/minix-1440.img"))
	assert.False(t, c.IsCompressedImagePath("images/minix-1440.gz"))
}

func TestLoadCompressedImageFile(t *testing.T) {
	original := append(bytes.Repeat([]byte{0}, 3000), []byte("minix")...)
	compressed, err := c.CompressImageToBytes(bytes.NewReader(original))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "image"+c.CompressedImageExtension)
	require.NoError(t, os.WriteFile(path, compressed, 0o600))

	loaded, err := c.LoadCompressedImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadCompressedImageFile__NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus"+c.CompressedImageExtension)
	require.NoError(t, os.WriteFile(path, []byte("not compressed"), 0o600))

	_, err := c.LoadCompressedImageFile(path)
	assert.Error(t, err)
}
