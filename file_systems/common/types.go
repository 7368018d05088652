// Package common contains definitions of fundamental types and functions used
// across multiple file system implementations.
package common

// PhysicalBlock is the index of a block on the device.
type PhysicalBlock uint
