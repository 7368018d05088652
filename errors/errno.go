// This is a compatibility shim for POSIX-defined errno codes across platforms.
// The syscall package doesn't define all the values we need on all systems,
// particularly things like EUCLEAN and EMEDIUMTYPE, and host glue (FUSE, VFS
// shims) needs a stable numeric code for every error the driver returns.

package errors

import (
	"fmt"
)

// Errno is a POSIX error code. The numeric values are only stable within this
// package; use the host's syscall package to translate them for a kernel.
type Errno int

const (
	EOK Errno = iota
	EPERM
	ENOENT
	EIO
	EBADF
	EINVAL
	ENOTDIR
	EISDIR
	EFBIG
	EROFS
	EDOM
	ERANGE
	ENAMETOOLONG
	ENOSYS
	ELOOP
	ENOTSUP
	EUCLEAN
	EMEDIUMTYPE
)

var errorMessagesByCode = map[Errno]string{
	EOK:          "Success",
	EPERM:        "Operation not permitted",
	ENOENT:       "No such file or directory",
	EIO:          "Input/output error",
	EBADF:        "Bad file descriptor",
	EINVAL:       "Invalid argument",
	ENOTDIR:      "Not a directory",
	EISDIR:       "Is a directory",
	EFBIG:        "File too large",
	EROFS:        "Read-only file system",
	EDOM:         "Numerical argument out of domain",
	ERANGE:       "Numerical result out of range",
	ENAMETOOLONG: "File name too long",
	ENOSYS:       "Function not implemented",
	ELOOP:        "Too many levels of symbolic links",
	ENOTSUP:      "Operation not supported",
	EUCLEAN:      "Structure needs cleaning",
	EMEDIUMTYPE:  "Wrong medium type",
}

// StrError returns the standard message for an error code, like strerror(3).
func StrError(code Errno) string {
	message, ok := errorMessagesByCode[code]
	if ok {
		return message
	}
	return fmt.Sprintf("error %d not recognized.", int(code))
}

// Error implements the `error` interface so that a bare code can be returned
// or compared against.
func (code Errno) Error() string {
	return StrError(code)
}
