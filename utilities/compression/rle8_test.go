package compression_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/dargueta/minixfs/file_systems/minixv1"
	minixtest "github.com/dargueta/minixfs/testing"
	c "github.com/dargueta/minixfs/utilities/compression"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRLE8__Groups(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []byte
	}{
		{"empty", []byte{}, []byte{}},
		{"lone pair", []byte{4, 4}, []byte{4, 4, 0}},
		{"no runs", []byte{0, 1, 2, 3, 4}, []byte{0, 1, 2, 3, 4}},
		{"pair at end", []byte{6, 1, 3, 0, 0}, []byte{6, 1, 3, 0, 0, 0}},
		{"three at end", []byte{6, 1, 0, 0, 0}, []byte{6, 1, 0, 0, 1}},
		{
			"adjacent runs",
			[]byte{9, 5, 5, 5, 5, 5, 5, 3, 3, 3, 3, 7},
			[]byte{9, 5, 5, 4, 3, 3, 2, 7},
		},
		{
			"full bitmap bytes",
			append(bytes.Repeat([]byte{0xff}, 20), 0x07),
			[]byte{0xff, 0xff, 18, 0x07},
		},
		{
			"zeroed block",
			make([]byte, minixv1.BlockSize),
			[]byte{0, 0, 255, 0, 0, 255, 0, 0, 255, 0, 0, 251},
		},
		{"one full group", bytes.Repeat([]byte{8}, 257), []byte{8, 8, 255}},
		{"full group and one", bytes.Repeat([]byte{8}, 258), []byte{8, 8, 255, 8}},
		{"full group and a pair", bytes.Repeat([]byte{8}, 259), []byte{8, 8, 255, 8, 8, 0}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			n, err := c.CompressRLE8(bytes.NewReader(test.input), output)
			require.NoError(t, err)
			assert.EqualValues(t, len(test.expected), n, "returned size is wrong")
			assert.Equal(t, test.expected, output.Bytes()[:n])
		})
	}
}

// runRoundTripRLE8 compresses and decompresses `original`, and returns the size
// of the compressed form.
func runRoundTripRLE8(t *testing.T, original []byte) int64 {
	compressed := &bytes.Buffer{}
	compressedSize, err := c.CompressRLE8(bytes.NewReader(original), compressed)
	require.NoError(t, err, "error while compressing")
	require.EqualValues(t, compressed.Len(), compressedSize)

	output := make([]byte, len(original))
	n, err := c.DecompressRLE8(compressed, bytewriter.New(output))
	require.NoError(t, err, "error while decompressing")
	assert.EqualValues(t, len(original), n, "returned decompressed size is wrong")
	assert.Equal(t, original, output, "decompressed data doesn't match the original")
	return compressedSize
}

func TestRLE8RoundTrip__Images(t *testing.T) {
	geometries := []minixtest.Geometry{
		minixtest.DefaultGeometry(),
		{Inodes: 480, Zones: 1440, Magic: minixv1.MagicV1LongNames},
	}

	for _, geometry := range geometries {
		image := minixtest.BuildSampleImage(t, geometry)
		compressedSize := runRoundTripRLE8(t, image)
		t.Logf("%d-zone image compressed %d -> %d", geometry.Zones, len(image), compressedSize)
		assert.Less(t, compressedSize, int64(len(image)/2), "free space should compress away")
	}
}

func TestRLE8RoundTrip__RandomZone(t *testing.T) {
	zone := make([]byte, minixv1.BlockSize)
	_, err := rand.Read(zone)
	require.NoError(t, err)
	runRoundTripRLE8(t, zone)
}

func TestRLE8RoundTrip__Empty(t *testing.T) {
	runRoundTripRLE8(t, []byte{})
}

// Once a group's count is read the group is over, so an identical byte right
// after it starts a new group rather than extending the old one.
func TestDecompressRLE8__GroupsDoNotChain(t *testing.T) {
	output := &bytes.Buffer{}
	n, err := c.DecompressRLE8(bytes.NewReader([]byte{7, 7, 0, 7, 7, 1}), output)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.Equal(t, bytes.Repeat([]byte{7}, 5), output.Bytes())
}

func TestDecompressRLE8__MissingRepeatCount(t *testing.T) {
	_, err := c.DecompressRLE8(bytes.NewReader([]byte{9, 1, 4, 4}), io.Discard)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type failingWriter struct{}

var errWriteFailed = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

func TestRLE8__WriteErrors(t *testing.T) {
	image := minixtest.BuildSampleImage(t, minixtest.DefaultGeometry())

	_, err := c.CompressRLE8(bytes.NewReader(image), failingWriter{})
	assert.ErrorIs(t, err, errWriteFailed)

	compressed := &bytes.Buffer{}
	_, err = c.CompressRLE8(bytes.NewReader(image), compressed)
	require.NoError(t, err)

	_, err = c.DecompressRLE8(compressed, failingWriter{})
	assert.ErrorIs(t, err, errWriteFailed)
}
