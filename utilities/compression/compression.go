package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"strings"
)

// CompressedImageExtension is the file name suffix of a compressed image.
const CompressedImageExtension = ".rle.gz"

// countingWriter counts the bytes that pass through it.
type countingWriter struct {
	writer  io.Writer
	written int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.writer.Write(p)
	cw.written += int64(n)
	return n, err
}

// CompressImage compresses a disk image using RLE8 and gzip.
//
// The returned int64 gives the number of bytes written to the output stream,
// i.e. the final compressed size. If an error occurred, the value is undefined
// and should not be used.
func CompressImage(input io.Reader, output io.Writer) (int64, error) {
	counter := &countingWriter{writer: output}

	// The images are small enough that the best compression level costs
	// nothing noticeable.
	gzWriter, err := gzip.NewWriterLevel(counter, gzip.BestCompression)
	if err != nil {
		return 0, err
	}

	_, err = CompressRLE8(input, gzWriter)
	if err != nil {
		gzWriter.Close()
		return counter.written, err
	}

	// Closing flushes the gzip trailer, so the count isn't final until now.
	err = gzWriter.Close()
	return counter.written, err
}

// DecompressImage takes a gzipped, RLE8-encoded disk image and decompresses it
// to the original raw bytes.
//
// The returned int64 gives the number of bytes written to the output (i.e. the
// decompressed size of the image). If an error occurred, the value is undefined
// and should not be used.
func DecompressImage(input io.Reader, output io.Writer) (int64, error) {
	gzReader, err := gzip.NewReader(input)
	if err != nil {
		return 0, err
	}
	defer gzReader.Close()
	return DecompressRLE8(gzReader, output)
}

// CompressImageToBytes is [CompressImage] returning a new byte slice.
func CompressImageToBytes(input io.Reader) ([]byte, error) {
	buffer := bytes.NewBuffer([]byte{})
	_, err := CompressImage(input, buffer)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DecompressImageToBytes is [DecompressImage] returning a new byte slice. On
// success the slice is never nil, even for an empty image.
func DecompressImageToBytes(input io.Reader) ([]byte, error) {
	buffer := bytes.NewBuffer([]byte{})
	_, err := DecompressImage(input, buffer)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// IsCompressedImagePath returns true if a file name has the extension of a
// compressed image.
func IsCompressedImagePath(path string) bool {
	return strings.HasSuffix(path, CompressedImageExtension)
}

// LoadCompressedImageFile reads a compressed image file and returns its
// decompressed contents.
func LoadCompressedImageFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecompressImageToBytes(file)
}
