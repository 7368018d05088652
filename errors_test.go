package minixfs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dargueta/minixfs"
	minixerrors "github.com/dargueta/minixfs/errors"
	"github.com/stretchr/testify/assert"
)

func TestDriverErrorWithMessage(t *testing.T) {
	newErr := minixfs.ErrNotFound.WithMessage("asdfqwerty")
	assert.Equal(
		t, "No such file or directory: asdfqwerty", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, minixfs.ErrNotFound)
	assert.Equal(t, minixerrors.ENOENT, newErr.Errno())
}

func TestDriverErrorWrap(t *testing.T) {
	originalErr := errors.New("original error")
	newErr := minixfs.ErrIOFailed.Wrap(originalErr)
	expectedMessage := "Input/output error: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, minixfs.ErrIOFailed, "driver error not set as parent")
	assert.Equal(t, minixerrors.EIO, newErr.Errno())
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.NotErrorIs(t, minixfs.ErrInvalidMagic, minixfs.ErrNotAFilesystem)
	assert.NotErrorIs(t, minixfs.ErrInconsistentGeometry, minixfs.ErrFileSystemCorrupted)
	assert.NotErrorIs(t, minixfs.ErrInvalidInode, minixfs.ErrInvalidArgument)
}

// Corrupt indirection is a specialisation of general corruption, so callers
// that only care about "the image is damaged" can check for the parent.
func TestCorruptIndirectionIsCorruption(t *testing.T) {
	err := minixfs.ErrCorruptIndirection.WithMessage("zone 9000 at index 3")
	assert.ErrorIs(t, err, minixfs.ErrCorruptIndirection)
	assert.ErrorIs(t, err, minixfs.ErrFileSystemCorrupted)
	assert.Equal(t, minixerrors.EUCLEAN, err.Errno())
}

func TestCastToDriverError(t *testing.T) {
	assert.Nil(t, minixfs.CastToDriverError(nil))

	original := minixfs.ErrNotADirectory.WithMessage("/etc/passwd")
	wrapped := fmt.Errorf("looking up: %w", original)
	assert.Equal(t, original, minixfs.CastToDriverError(wrapped))

	plain := errors.New("unexpected EOF")
	cast := minixfs.CastToDriverError(plain)
	assert.ErrorIs(t, cast, minixfs.ErrIOFailed)
	assert.ErrorIs(t, cast, plain)
}
