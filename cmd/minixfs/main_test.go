package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dargueta/minixfs/file_systems/minixv1"
	minixtest "github.com/dargueta/minixfs/testing"
	"github.com/dargueta/minixfs/utilities/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeSampleImage(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "sample.img")
	image := minixtest.BuildSampleImage(t, minixtest.DefaultGeometry())
	require.NoError(t, os.WriteFile(path, image, 0o600))
	return path
}

// runApp runs the command line and returns what it wrote to stdout and stderr.
func runApp(t *testing.T, args ...string) (string, string, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	app := newApp(stdout, stderr)
	err := app.Run(append([]string{"minixfs"}, args...))
	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) int {
	var exitCoder cli.ExitCoder
	require.True(t, errors.As(err, &exitCoder), "expected an exit code, got %v", err)
	return exitCoder.ExitCode()
}

func TestLs(t *testing.T) {
	image := writeSampleImage(t)

	stdout, _, err := runApp(t, "--image", image, "ls")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, len(minixtest.SampleRootNames)-2)
	assert.True(t, strings.HasPrefix(lines[0], "-rw-r--r--"), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], " hello.txt"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "drwxr-xr-x"), lines[1])
	assert.Contains(t, stdout, "readme -> docs/readme.txt\n")
	assert.Contains(t, stdout, "4, 1 ")

	stdout, _, err = runApp(t, "--image", image, "ls", "--all", "/docs-link")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], " ."))
	assert.True(t, strings.HasSuffix(lines[1], " .."))
	assert.True(t, strings.HasSuffix(lines[3], " nested"))

	stdout, _, err = runApp(t, "--image", image, "ls", "/docs/readme.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(stdout), " readme.txt"))
}

func TestLs__CSV(t *testing.T) {
	stdout, _, err := runApp(t, "--image", writeSampleImage(t), "ls", "--format", "csv", "/docs")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "mode,links,uid,gid,size,modified,inode,name,target", lines[0])
	assert.Equal(t, "-r--r--r--,1,0,0,15,1985-10-26 01:20,7,readme.txt,", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "drwxr-xr-x,2,"), lines[2])
}

func TestLs__Errors(t *testing.T) {
	image := writeSampleImage(t)

	_, _, err := runApp(t, "--image", image, "ls", "--format", "xml")
	assert.Equal(t, 2, exitCode(t, err))

	_, _, err = runApp(t, "--image", image, "ls", "/missing")
	assert.Error(t, err)
}

func TestCat(t *testing.T) {
	image := writeSampleImage(t)

	stdout, _, err := runApp(t, "--image", image, "cat", "/hello.txt", "readme")
	require.NoError(t, err)
	assert.Equal(t, minixtest.SampleHelloContents+minixtest.SampleReadmeContents, stdout)

	stdout, _, err = runApp(t, "--image", image, "cat", "/big.bin")
	require.NoError(t, err)
	assert.Equal(t, string(minixtest.SampleBigContents(1024)), stdout)

	_, _, err = runApp(t, "--image", image, "cat", "/docs")
	assert.Error(t, err)

	_, _, err = runApp(t, "--image", image, "cat")
	assert.Equal(t, 2, exitCode(t, err))
}

func TestStat(t *testing.T) {
	image := writeSampleImage(t)

	stdout, _, err := runApp(t, "--image", image, "stat", "/readme")
	require.NoError(t, err)
	assert.Contains(t, stdout, "type: symbolic link\n")
	assert.Contains(t, stdout, "target: docs/readme.txt\n")
	assert.Contains(t, stdout, "inode: 4\n")

	stdout, _, err = runApp(t, "--image", image, "stat", "--dereference", "/readme")
	require.NoError(t, err)
	assert.Contains(t, stdout, "type: regular file\n")
	assert.Contains(t, stdout, "mode: 0444 (-r--r--r--)\n")
	assert.NotContains(t, stdout, "target:")

	stdout, _, err = runApp(t, "--image", image, "stat", "/tty")
	require.NoError(t, err)
	assert.Contains(t, stdout, "device: 4, 1\n")
}

func TestSuperAndDf(t *testing.T) {
	image := writeSampleImage(t)

	stdout, _, err := runApp(t, "--image", image, "super")
	require.NoError(t, err)
	assert.Contains(t, stdout, "magic: 4991\n")
	assert.Contains(t, stdout, "zones: 360\n")
	assert.Contains(t, stdout, "name_length: 14\n")
	assert.Contains(t, stdout, "clean: true\n")

	stdout, _, err = runApp(t, "--image", image, "df")
	require.NoError(t, err)
	assert.Contains(t, stdout, "block_size: 1024\n")
	assert.Contains(t, stdout, "files: 64\n")
	assert.Contains(t, stdout, "max_name_length: 14\n")
}

func TestCheck(t *testing.T) {
	stdout, _, err := runApp(t, "--image", writeSampleImage(t), "check")
	require.NoError(t, err)
	assert.Equal(t, "no problems found\n", stdout)

	builder := minixtest.BuildSampleTree(t, minixtest.DefaultGeometry())
	builder.SetInodeAllocated(minixtest.SampleHelloInode, false)
	builder.SetInodeAllocated(minixtest.SampleDeepInode, false)
	path := filepath.Join(t.TempDir(), "damaged.img")
	require.NoError(t, os.WriteFile(path, builder.Image(), 0o600))

	stdout, _, err = runApp(t, "--image", path, "check")
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "2 problem(s) found")
	assert.Contains(t, stdout, "/hello.txt: ")
	assert.Contains(t, stdout, "/docs/nested/deep.txt: ")
}

func TestCompressedImage(t *testing.T) {
	image := minixtest.BuildSampleImage(t, minixtest.DefaultGeometry())
	compressed, err := compression.CompressImageToBytes(bytes.NewReader(image))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sample"+compression.CompressedImageExtension)
	require.NoError(t, os.WriteFile(path, compressed, 0o600))

	stdout, _, err := runApp(t, "--image", path, "--cache-blocks", "16", "cat", "/docs/nested/deep.txt")
	require.NoError(t, err)
	assert.Equal(t, minixtest.SampleDeepContents, stdout)
}

func TestCompressDecompress(t *testing.T) {
	raw := writeSampleImage(t)
	dir := t.TempDir()
	compressed := filepath.Join(dir, "sample"+compression.CompressedImageExtension)
	expanded := filepath.Join(dir, "expanded.img")

	stdout, _, err := runApp(t, "compress", raw, compressed)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "Compressed input file to "), stdout)

	stdout, _, err = runApp(t, "--image", compressed, "cat", "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, minixtest.SampleHelloContents, stdout)

	_, _, err = runApp(t, "decompress", compressed, expanded)
	require.NoError(t, err)

	original, err := os.ReadFile(raw)
	require.NoError(t, err)
	roundTripped, err := os.ReadFile(expanded)
	require.NoError(t, err)
	assert.Equal(t, original, roundTripped)

	_, _, err = runApp(t, "compress", raw)
	assert.Equal(t, 2, exitCode(t, err))
}

func TestImageErrors(t *testing.T) {
	t.Setenv("MINIXFS_IMAGE", "")

	_, _, err := runApp(t, "ls")
	assert.Equal(t, 2, exitCode(t, err))
	assert.Contains(t, err.Error(), "MINIXFS_IMAGE")

	_, _, err = runApp(t, "--image", filepath.Join(t.TempDir(), "missing.img"), "ls")
	assert.Equal(t, 2, exitCode(t, err))

	notMinix := filepath.Join(t.TempDir(), "zeroes.img")
	require.NoError(t, os.WriteFile(notMinix, make([]byte, 64*minixv1.BlockSize), 0o600))
	_, _, err = runApp(t, "--image", notMinix, "super")
	assert.Equal(t, 2, exitCode(t, err))
	assert.Contains(t, err.Error(), "magic")
}

func TestVerboseLogging(t *testing.T) {
	builder := minixtest.BuildSampleTree(t, minixtest.DefaultGeometry())
	builder.Superblock.State = minixv1.StateErrors
	path := filepath.Join(t.TempDir(), "dirty.img")
	require.NoError(t, os.WriteFile(path, builder.Image(), 0o600))

	_, stderr, err := runApp(t, "--image", path, "df")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	_, stderr, err = runApp(t, "--image", path, "--verbose", "df")
	require.NoError(t, err)
	assert.Contains(t, stderr, "minixfs: ")
	assert.Contains(t, stderr, "not cleanly unmounted")
}
