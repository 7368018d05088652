package main

import (
	"bytes"
	"testing"

	"github.com/dargueta/minixfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MINIXFS_IMAGE", "/tmp/disk.img")
	t.Setenv("MINIXFS_STRICT", "true")
	t.Setenv("MINIXFS_CACHE_BLOCKS", "32")
	t.Setenv("MINIXFS_VERBOSE", "false")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, Config{Image: "/tmp/disk.img", Strict: true, CacheBlocks: 32}, *config)
	assert.NoError(t, config.Validate())

	options := config.MountOptions(&bytes.Buffer{})
	assert.True(t, options.Flags.Strict())
	assert.Nil(t, options.Logger)
}

func TestLoadConfig__BadValue(t *testing.T) {
	t.Setenv("MINIXFS_CACHE_BLOCKS", "lots")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig__FlagsWin(t *testing.T) {
	t.Setenv("MINIXFS_IMAGE", "/from/env.img")
	t.Setenv("MINIXFS_STRICT", "true")

	var seen Config
	app := &cli.App{
		Flags: newApp(nil, nil).Flags,
		Action: func(ctx *cli.Context) error {
			config, err := LoadConfig()
			if err != nil {
				return err
			}
			config.ApplyFlags(ctx)
			seen = *config
			return nil
		},
	}

	err := app.Run([]string{"minixfs", "--image", "/from/flag.img", "--strict=false", "--verbose"})
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.img", seen.Image)
	assert.False(t, seen.Strict)
	assert.True(t, seen.Verbose)
	assert.Zero(t, seen.CacheBlocks)

	logOutput := &bytes.Buffer{}
	options := seen.MountOptions(logOutput)
	assert.Equal(t, minixfs.MountFlagsDefault, options.Flags)
	require.NotNil(t, options.Logger)
	options.Logger.Print("hello")
	assert.Equal(t, "minixfs: hello\n", logOutput.String())
}

func TestConfig__Validate(t *testing.T) {
	config := Config{}
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--image")
}
