package main

import (
	"bytes"
	"io"

	"github.com/dargueta/minixfs"
	"github.com/dargueta/minixfs/driver"
	c "github.com/dargueta/minixfs/file_systems/common"
	"github.com/dargueta/minixfs/file_systems/common/blockcache"
	"github.com/dargueta/minixfs/file_systems/common/blockdevice"
	"github.com/dargueta/minixfs/file_systems/minixv1"
	"github.com/dargueta/minixfs/utilities/compression"
)

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// openImage returns a block source for the image at `path`. Compressed images
// are expanded into memory; anything else is read in place.
func openImage(path string) (c.BlockSource, io.Closer, error) {
	if compression.IsCompressedImagePath(path) {
		data, err := compression.LoadCompressedImageFile(path)
		if err != nil {
			return nil, nil, minixfs.CastToDriverError(err)
		}
		source := c.NewReaderAtSource(bytes.NewReader(data), int64(len(data)))
		return source, closerFunc(func() error { return nil }), nil
	}

	device, err := blockdevice.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return device, device, nil
}

// session is a mounted image, ready for a command to use.
type session struct {
	config *Config
	fs     *minixv1.FileSystem
	driver *driver.Driver
	closer io.Closer
}

func openSession(config *Config, logOutput io.Writer) (*session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	source, closer, err := openImage(config.Image)
	if err != nil {
		return nil, err
	}

	// Only the first CacheBlocks blocks are cached, which covers the
	// superblock, bitmaps, and inode table on typical images.
	if config.CacheBlocks > 0 {
		source = blockcache.WrapSource(source, minixv1.BlockSize, config.CacheBlocks)
	}

	fs, err := minixv1.Mount(source, config.MountOptions(logOutput))
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &session{
		config: config,
		fs:     fs,
		driver: driver.New(fs),
		closer: closer,
	}, nil
}

func (s *session) Close() error {
	return s.closer.Close()
}
