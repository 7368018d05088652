// Command minixfs inspects Minix V1 disk images without mounting them on the
// host. Every command is read-only.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	posixpath "path"

	"github.com/dargueta/minixfs"
	"github.com/dargueta/minixfs/file_systems/minixv1"
	"github.com/dargueta/minixfs/utilities/compression"
	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func main() {
	app := newApp(os.Stdout, os.Stderr)

	err := app.Run(os.Args)
	if err != nil {
		var exitCoder cli.ExitCoder
		if errors.As(err, &exitCoder) {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(exitCoder.ExitCode())
		}
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "minixfs",
		Usage:     "Inspect Minix V1 file system images",
		Writer:    stdout,
		ErrWriter: stderr,
		// main() decides how to exit, so that tests can run commands that
		// fail.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage: "Path to the image file or block device. Images ending in " +
					"`.rle.gz` are decompressed into memory first.",
			},
			&cli.BoolFlag{
				Name: "strict",
				Usage: "Fail on damaged directory entries instead of skipping " +
					"them, and check inodes against the inode bitmap.",
			},
			&cli.UintFlag{
				Name:  "cache-blocks",
				Usage: "Cache this many blocks from the start of the image.",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log warnings about recoverable damage to stderr.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "super",
				Usage:  "Show the superblock and the geometry derived from it",
				Action: withSession(showSuperblock),
			},
			{
				Name:      "ls",
				Usage:     "List a directory",
				ArgsUsage: "[PATH]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Value: "long",
						Usage: "Output format: `long` or `csv`.",
					},
					&cli.BoolFlag{
						Name:    "all",
						Aliases: []string{"a"},
						Usage:   "Include the . and .. entries.",
					},
				},
				Action: withSession(listDirectory),
			},
			{
				Name:      "cat",
				Usage:     "Write the contents of files to stdout",
				ArgsUsage: "PATH...",
				Action:    withSession(catFiles),
			},
			{
				Name:      "stat",
				Usage:     "Show the metadata of a file",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "dereference",
						Aliases: []string{"L"},
						Usage:   "Follow a symbolic link in the last component.",
					},
				},
				Action: withSession(statFile),
			},
			{
				Name:   "df",
				Usage:  "Show free space and inodes",
				Action: withSession(showUsage),
			},
			{
				Name:   "check",
				Usage:  "Cross-check the directory tree against the bitmaps",
				Action: withSession(checkImage),
			},
			{
				Name:      "compress",
				Usage:     "Compress a raw image with RLE8 and gzip",
				ArgsUsage: "INPUT OUTPUT",
				Action:    compressImage,
			},
			{
				Name:      "decompress",
				Usage:     "Expand a compressed image back into a raw one",
				ArgsUsage: "INPUT OUTPUT",
				Action:    decompressImage,
			},
		},
	}
}

// withSession loads the configuration, mounts the image, and runs `action`
// with it.
func withSession(action func(*session, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		config, err := LoadConfig()
		if err != nil {
			return err
		}
		config.ApplyFlags(ctx)

		s, err := openSession(config, ctx.App.ErrWriter)
		if err != nil {
			return cli.Exit(fmt.Sprintf("can't open image: %s", err.Error()), 2)
		}
		defer s.Close()
		return action(s, ctx)
	}
}

func writeYAML(output io.Writer, value any) error {
	encoder := yaml.NewEncoder(output)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return err
	}
	return encoder.Close()
}

type superblockOutput struct {
	Superblock minixv1.Superblock `yaml:"superblock"`
	Geometry   struct {
		ZoneSize           uint   `yaml:"zone_size"`
		InodeTableStart    uint   `yaml:"inode_table_start"`
		InodeTableBlocks   uint   `yaml:"inode_table_blocks"`
		DataZones          uint   `yaml:"data_zones"`
		NameLength         uint   `yaml:"name_length"`
		MaxAddressableSize uint64 `yaml:"max_addressable_size"`
		Clean              bool   `yaml:"clean"`
	} `yaml:"geometry"`
}

func showSuperblock(s *session, ctx *cli.Context) error {
	sb := s.fs.Superblock()

	output := superblockOutput{Superblock: sb}
	output.Geometry.ZoneSize = sb.ZoneSize()
	output.Geometry.InodeTableStart = sb.InodeTableStart()
	output.Geometry.InodeTableBlocks = sb.InodeTableBlocks()
	output.Geometry.DataZones = sb.DataZones()
	output.Geometry.NameLength = sb.NameLength()
	output.Geometry.MaxAddressableSize = sb.MaxAddressableSize()
	output.Geometry.Clean = sb.IsClean()
	return writeYAML(ctx.App.Writer, output)
}

func listDirectory(s *session, ctx *cli.Context) error {
	path := "/"
	if ctx.Args().Present() {
		path = ctx.Args().First()
	}
	info, err := s.driver.StatInfo(path)
	if err != nil {
		return err
	}

	var rows []*listingRow
	if !info.IsDir() {
		absPath := s.driver.NormalizePath(path)
		row, err := listingRowFor(s, absPath, posixpath.Base(absPath))
		if err != nil {
			return err
		}
		rows = append(rows, row)
	} else {
		// Listing a link to a directory lists the directory it points to.
		absPath := info.AbsolutePath()
		if ctx.Bool("all") {
			for _, name := range []string{".", ".."} {
				row, err := listingRowFor(s, posixpath.Join(absPath, name), name)
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}
		}

		infos, err := s.driver.ReadDir(absPath)
		if err != nil {
			return err
		}
		for _, info := range infos {
			row, err := listingRowFor(s, posixpath.Join(absPath, info.Name()), info.Name())
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
	}

	switch ctx.String("format") {
	case "long":
		for _, row := range rows {
			fmt.Fprintln(ctx.App.Writer, row.Long())
		}
		return nil
	case "csv":
		return gocsv.Marshal(rows, ctx.App.Writer)
	default:
		return cli.Exit(fmt.Sprintf("unknown format %q", ctx.String("format")), 2)
	}
}

// listingRowFor describes the object at `path` without following a symlink in
// the last component.
func listingRowFor(s *session, path string, name string) (*listingRow, error) {
	stat, err := s.driver.Lstat(path)
	if err != nil {
		return nil, err
	}

	var target string
	if stat.IsSymlink() {
		target, err = s.driver.Readlink(path)
		if err != nil {
			return nil, err
		}
	}
	return newListingRow(name, stat, target), nil
}

func catFiles(s *session, ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return cli.Exit("cat: no paths given", 2)
	}

	for _, path := range ctx.Args().Slice() {
		file, err := s.driver.Open(path)
		if err != nil {
			return err
		}

		_, err = io.Copy(ctx.App.Writer, file)
		file.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func statFile(s *session, ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return cli.Exit("stat: expected exactly one path", 2)
	}
	path := s.driver.NormalizePath(ctx.Args().First())

	var stat minixfs.FileStat
	var err error
	if ctx.Bool("dereference") {
		stat, err = s.driver.Stat(path)
	} else {
		stat, err = s.driver.Lstat(path)
	}
	if err != nil {
		return err
	}

	var target string
	if stat.IsSymlink() {
		target, err = s.driver.Readlink(path)
		if err != nil {
			return err
		}
	}
	return writeYAML(ctx.App.Writer, newStatOutput(path, stat, target))
}

func showUsage(s *session, ctx *cli.Context) error {
	usage, err := s.fs.FSStat()
	if err != nil {
		return err
	}
	return writeYAML(ctx.App.Writer, usage)
}

func checkImage(s *session, ctx *cli.Context) error {
	err := minixv1.Check(s.fs)
	if err == nil {
		fmt.Fprintln(ctx.App.Writer, "no problems found")
		return nil
	}

	var problems *multierror.Error
	if !errors.As(err, &problems) {
		return err
	}
	for _, problem := range problems.Errors {
		fmt.Fprintln(ctx.App.Writer, problem.Error())
	}
	return cli.Exit(fmt.Sprintf("%d problem(s) found", len(problems.Errors)), 1)
}

// convertFile streams INPUT through `convert` into OUTPUT. Neither needs to be
// a valid image.
func convertFile(
	ctx *cli.Context, convert func(io.Reader, io.Writer) (int64, error),
) (int64, error) {
	if ctx.Args().Len() != 2 {
		return 0, cli.Exit(ctx.Command.Name+": expected INPUT and OUTPUT", 2)
	}
	sourceFilePath := ctx.Args().Get(0)
	outputFilePath := ctx.Args().Get(1)

	sourceFile, err := os.Open(sourceFilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %q for reading: %w", sourceFilePath, err)
	}
	defer sourceFile.Close()

	outFile, err := os.Create(outputFilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %q for writing: %w", outputFilePath, err)
	}

	nWritten, err := convert(sourceFile, outFile)
	closeErr := outFile.Close()
	if err != nil {
		return nWritten, err
	}
	return nWritten, closeErr
}

func compressImage(ctx *cli.Context) error {
	nWritten, err := convertFile(ctx, compression.CompressImage)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "Compressed input file to %d bytes.\n", nWritten)
	return nil
}

func decompressImage(ctx *cli.Context) error {
	nWritten, err := convertFile(ctx, compression.DecompressImage)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "Expanded input file to %d bytes.\n", nWritten)
	return nil
}
