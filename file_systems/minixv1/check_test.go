package minixv1_test

import (
	"errors"
	"testing"

	"github.com/dargueta/minixfs"
	"github.com/dargueta/minixfs/file_systems/minixv1"
	minixtest "github.com/dargueta/minixfs/testing"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck__Clean(t *testing.T) {
	for _, geometry := range []minixtest.Geometry{
		minixtest.DefaultGeometry(),
		{Inodes: 64, Zones: 200, LogZoneSize: 1, Magic: minixv1.MagicV1LongNames},
	} {
		for _, flags := range []minixfs.MountFlags{minixfs.MountFlagsDefault, minixfs.MountFlagsStrict} {
			fs := minixtest.MountImage(t, minixtest.BuildSampleImage(t, geometry), flags)
			assert.NoError(t, minixv1.Check(fs))
		}
	}
}

func TestCheck__NotMounted(t *testing.T) {
	assert.ErrorIs(t, minixv1.Check(nil), minixfs.ErrNotMounted)
	assert.ErrorIs(t, minixv1.Check(&minixv1.FileSystem{}), minixfs.ErrNotMounted)
}

// Damage in several places is all reported at once.
func TestCheck__ReportsEverything(t *testing.T) {
	builder := minixtest.BuildSampleTree(t, minixtest.DefaultGeometry())

	// An inode that's in use but marked free.
	builder.SetInodeAllocated(minixtest.SampleHelloInode, false)

	// A file whose only zone is marked free.
	zones := builder.WriteData([]byte("leaky"))
	builder.WriteInode(20, minixv1.RawInode{
		Mode: minixfs.S_IFREG | 0o644, Size: 5, Nlinks: 1, Zones: zones,
	})
	builder.SetZoneAllocated(zones[0], false)

	// A file whose indirect zone points off the end of the device.
	indirect := builder.AllocZone()
	builder.WriteZonePointers(indirect, []uint16{9000})
	var badZones [minixv1.NumZonePointers]uint16
	badZones[minixv1.IndirectZoneSlot] = indirect
	builder.WriteInode(21, minixv1.RawInode{
		Mode: minixfs.S_IFREG | 0o644, Size: 8 * 1024, Nlinks: 1, Zones: badZones,
	})

	builder.AddDirectory(
		minixtest.SampleDocsInode,
		minixtest.SampleRootInode,
		minixtest.Dirent{Name: "readme.txt", Inode: minixtest.SampleReadmeInode},
		minixtest.Dirent{Name: "nested", Inode: minixtest.SampleNestedInode},
		minixtest.Dirent{Name: "leaky", Inode: 20},
		minixtest.Dirent{Name: "bogus", Inode: 5000},
		minixtest.Dirent{Name: "bad-indirect", Inode: 21},
	)

	fs := minixtest.MountImage(t, builder.Image(), minixfs.MountFlagsDefault)
	err := minixv1.Check(fs)
	require.Error(t, err)

	var problems *multierror.Error
	require.True(t, errors.As(err, &problems), "expected a multierror, got %T", err)
	require.Len(t, problems.Errors, 4, "%v", err)

	assert.Contains(t, problems.Errors[0].Error(), "/hello.txt: ")
	assert.Contains(t, problems.Errors[0].Error(), "marked free")

	assert.Contains(t, problems.Errors[1].Error(), "/docs/leaky: ")
	assert.Contains(t, problems.Errors[1].Error(), "in use by inode 20")

	assert.Contains(t, problems.Errors[2].Error(), "/docs: ")
	assert.Contains(t, problems.Errors[2].Error(), "inode 5000")

	assert.Contains(t, problems.Errors[3].Error(), "/docs/bad-indirect: ")
	assert.ErrorIs(t, problems.Errors[3], minixfs.ErrCorruptIndirection)

	for _, problem := range problems.Errors {
		assert.ErrorIs(t, problem, minixfs.ErrFileSystemCorrupted)
	}

	// Nothing the checker found stops normal reads of the healthy parts.
	readme, err := fs.LookupPath([]string{"docs", "readme.txt"})
	require.NoError(t, err)
	data, err := fs.Read(readme, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, minixtest.SampleReadmeContents, string(data))
}
