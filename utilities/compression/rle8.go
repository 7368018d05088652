package compression

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// maxRepeatCount is the largest number of extra repetitions one RLE8 group
// can hold.
const maxRepeatCount = 255

// CompressRLE8 reads bytes from the input and writes compressed data to the
// output until the input is exhausted. The return value is the number of bytes
// written, only valid if no error occurred.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	counter := &countingWriter{writer: output}
	sink := bufio.NewWriter(counter)

	for {
		value, length, err := readRun(source)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return counter.written, err
		}

		if err = writeRun(sink, value, length); err != nil {
			return counter.written, err
		}
	}

	err := sink.Flush()
	return counter.written, err
}

// readRun consumes the longest run of one byte value at the head of `source`.
// It returns [io.EOF] only if there's nothing left at all.
func readRun(source *bufio.Reader) (byte, int, error) {
	value, err := source.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	length := 1
	for {
		next, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			return value, length, nil
		} else if err != nil {
			return 0, 0, err
		}

		if next != value {
			_ = source.UnreadByte()
			return value, length, nil
		}
		length++
	}
}

// writeRun encodes `length` copies of `value` as as many full groups as it
// takes, plus a lone byte if one is left over.
func writeRun(sink *bufio.Writer, value byte, length int) error {
	for ; length >= 2; length -= 2 {
		extra := length - 2
		if extra > maxRepeatCount {
			extra = maxRepeatCount
		}
		if _, err := sink.Write([]byte{value, value, byte(extra)}); err != nil {
			return err
		}
		length -= extra
	}

	if length == 1 {
		return sink.WriteByte(value)
	}
	return nil
}

// DecompressRLE8 is the inverse of [CompressRLE8]. A stream that ends right
// after a pair of identical bytes is missing its repeat count, and fails with
// an error wrapping [io.ErrUnexpectedEOF].
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	counter := &countingWriter{writer: output}
	sink := bufio.NewWriter(counter)

	var previous byte
	pending := false

	for {
		value, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return counter.written, fmt.Errorf("error reading input: %w", err)
		}

		if !pending || value != previous {
			if err = sink.WriteByte(value); err != nil {
				return counter.written, fmt.Errorf("failed to write to output: %w", err)
			}
			previous = value
			pending = true
			continue
		}

		extra, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			return counter.written, fmt.Errorf(
				"%w: missing repeat count after two %02x bytes", io.ErrUnexpectedEOF, value)
		} else if err != nil {
			return counter.written, fmt.Errorf("error reading input: %w", err)
		}

		// The first byte of the pair is already out.
		for i := 0; i <= int(extra); i++ {
			if err = sink.WriteByte(value); err != nil {
				return counter.written, fmt.Errorf("failed to write to output: %w", err)
			}
		}
		// A group never continues into the next byte, even an identical one.
		pending = false
	}

	if err := sink.Flush(); err != nil {
		return counter.written, fmt.Errorf("failed to write to output: %w", err)
	}
	return counter.written, nil
}
