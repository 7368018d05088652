package minixfs

import (
	stderrors "errors"
	"fmt"

	"github.com/dargueta/minixfs/errors"
	"github.com/hashicorp/go-multierror"
)

// DriverError is the error type returned by everything in this module. It
// carries a POSIX error code so host glue can translate it without parsing
// messages.
type DriverError interface {
	error
	Errno() errors.Errno
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

// rootError is the ancestor of every sentinel; it only holds the errno code.
type rootError errors.Errno

// Host-facing errors with their standard messages.
var ErrInvalidArgument = rootError(errors.EINVAL).WithMessage("Invalid argument")
var ErrIOFailed = rootError(errors.EIO).WithMessage("Input/output error")
var ErrIsADirectory = rootError(errors.EISDIR).WithMessage("Is a directory")
var ErrLinkCycleDetected = rootError(errors.ELOOP).WithMessage("Symlink cycle detected")
var ErrNameTooLong = rootError(errors.ENAMETOOLONG).WithMessage("File name too long")
var ErrNotADirectory = rootError(errors.ENOTDIR).WithMessage("Not a directory")
var ErrNotFound = rootError(errors.ENOENT).WithMessage("No such file or directory")
var ErrNotSupported = rootError(errors.ENOTSUP).WithMessage("Operation not supported")
var ErrReadOnlyFileSystem = rootError(errors.EROFS).WithMessage("Read-only file system")
var ErrFileSystemCorrupted = rootError(errors.EUCLEAN).WithMessage("Structure needs cleaning")
var ErrBadFileDescriptor = rootError(errors.EBADF).WithMessage("Bad file descriptor")

// Mount-time failures. Any of these is fatal to the mount attempt.
var ErrInvalidMagic = rootError(errors.EMEDIUMTYPE).WithMessage("Bad superblock magic number")
var ErrInconsistentGeometry = rootError(errors.EUCLEAN).WithMessage("Inconsistent file system geometry")
var ErrNotAFilesystem = rootError(errors.EMEDIUMTYPE).WithMessage("Not a Minix file system")
var ErrNotMounted = rootError(errors.EINVAL).WithMessage("File system is not mounted")

// Per-operation failures. The mounted file system stays usable after these.
var ErrInvalidInode = rootError(errors.EINVAL).WithMessage("Invalid inode number")
var ErrOutOfRange = rootError(errors.EDOM).WithMessage("Numerical argument out of domain")
var ErrOffsetOutOfRange = rootError(errors.ERANGE).WithMessage("Offset out of range")
var ErrCorruptIndirection = ErrFileSystemCorrupted.WithMessage("corrupt indirect zone")

func (e rootError) Error() string {
	return errors.StrError(errors.Errno(e))
}

func (e rootError) Errno() errors.Errno {
	return errors.Errno(e)
}

func (e rootError) WithMessage(message string) DriverError {
	return customDriverError{
		errno:         errors.Errno(e),
		message:       message,
		originalError: e,
	}
}

func (e rootError) Wrap(err error) DriverError {
	return customDriverError{
		errno:         errors.Errno(e),
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	errno         errors.Errno
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) Errno() errors.Errno {
	return e.errno
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) Wrap(err error) DriverError {
	return customDriverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}

// CastToDriverError returns `err` unchanged if it already is (or wraps) a
// [DriverError]. Anything else is treated as a device failure and wrapped in
// [ErrIOFailed]. A nil error stays nil.
func CastToDriverError(err error) DriverError {
	if err == nil {
		return nil
	}

	var driverErr DriverError
	if stderrors.As(err, &driverErr) {
		return driverErr
	}
	return ErrIOFailed.Wrap(err)
}
