package main

import (
	"fmt"
	"io"
	"log"

	"github.com/dargueta/minixfs"
	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v2"
)

const envVarPrefix = "MINIXFS"

// Config holds the settings shared by every command. Values come from the
// environment first, then from command-line flags, which win.
type Config struct {
	Image       string `envconfig:"IMAGE"`
	Strict      bool   `envconfig:"STRICT"`
	CacheBlocks uint   `envconfig:"CACHE_BLOCKS"`
	Verbose     bool   `envconfig:"VERBOSE"`
}

// LoadConfig reads the MINIXFS_* environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

// ApplyFlags overrides settings with any global flags given on the command
// line.
func (c *Config) ApplyFlags(ctx *cli.Context) {
	if ctx.IsSet("image") {
		c.Image = ctx.String("image")
	}
	if ctx.IsSet("strict") {
		c.Strict = ctx.Bool("strict")
	}
	if ctx.IsSet("cache-blocks") {
		c.CacheBlocks = ctx.Uint("cache-blocks")
	}
	if ctx.IsSet("verbose") {
		c.Verbose = ctx.Bool("verbose")
	}
}

func (c *Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf(
			"missing required configuration: --image / %s_IMAGE", envVarPrefix)
	}
	return nil
}

// MountOptions converts the settings into options for the driver. Log output
// goes to `logOutput`, and only if verbose logging is on.
func (c *Config) MountOptions(logOutput io.Writer) minixfs.MountOptions {
	options := minixfs.MountOptions{Flags: minixfs.MountFlagsDefault}
	if c.Strict {
		options.Flags |= minixfs.MountFlagsStrict
	}
	if c.Verbose {
		options.Logger = log.New(logOutput, "minixfs: ", 0)
	}
	return options
}
