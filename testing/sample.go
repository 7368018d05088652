package minixtest

import (
	"testing"

	"github.com/dargueta/minixfs/file_systems/minixv1"
)

// Inode numbers of everything in the sample image.
const (
	SampleRootInode     = uint16(minixv1.RootInode)
	SampleHelloInode    = 2
	SampleDocsInode     = 3
	SampleLinkInode     = 4
	SampleBigInode      = 5
	SampleSparseInode   = 6
	SampleReadmeInode   = 7
	SampleNestedInode   = 8
	SampleDeepInode     = 9
	SampleAbsLinkInode  = 10
	SampleLoopAInode    = 11
	SampleLoopBInode    = 12
	SampleDeviceInode   = 13
	SampleDanglingInode = 14
	SampleDirLinkInode  = 15
)

const SampleHelloContents = "world"
const SampleReadmeContents = "Read me first.\n"
const SampleDeepContents = "three levels down\n"

// SampleBigZones is the length of big.bin in zones. It's long enough to need
// the single-indirect zone.
const SampleBigZones = 20

// SampleSparseHoleZones is the number of zones of holes between the two runs
// of data in sparse.bin.
const SampleSparseHoleZones = 9

// SampleBigContents returns the contents of big.bin. No two 1 KiB blocks of it
// are the same, so reading the wrong zone is detectable.
func SampleBigContents(zoneSize uint) []byte {
	data := make([]byte, SampleBigZones*zoneSize+123)
	for i := range data {
		data[i] = byte(i*7 + i/1024)
	}
	return data
}

// SampleSparseContents returns the contents of sparse.bin: "start", a gap of
// zeroes, and "end" in a zone reached through the single-indirect zone.
func SampleSparseContents(zoneSize uint) []byte {
	data := make([]byte, (SampleSparseHoleZones+1)*zoneSize+3)
	copy(data, "start")
	copy(data[(SampleSparseHoleZones+1)*zoneSize:], "end")
	return data
}

// BuildSampleImage creates an image with this tree:
//
//	/
//	├── hello.txt          "world"
//	├── docs/
//	│   ├── readme.txt
//	│   └── nested/
//	│       └── deep.txt
//	├── readme -> docs/readme.txt
//	├── big.bin            needs the single-indirect zone
//	├── sparse.bin         has holes
//	├── abs -> /hello.txt
//	├── loop-a -> loop-b
//	├── loop-b -> loop-a
//	├── tty                character device 4, 1
//	├── dangling -> nowhere
//	└── docs-link -> docs
func BuildSampleImage(t *testing.T, geometry Geometry) []byte {
	builder := BuildSampleTree(t, geometry)
	return builder.Image()
}

// BuildSampleTree is [BuildSampleImage] returning the builder instead, so that
// tests can damage the image before finishing it.
func BuildSampleTree(t *testing.T, geometry Geometry) *ImageBuilder {
	builder := NewImageBuilder(t, geometry)
	zoneSize := builder.Superblock.ZoneSize()

	builder.AddDirectory(
		SampleRootInode,
		SampleRootInode,
		Dirent{Name: "hello.txt", Inode: SampleHelloInode},
		Dirent{Name: "docs", Inode: SampleDocsInode},
		Dirent{Name: "readme", Inode: SampleLinkInode},
		Dirent{Name: "big.bin", Inode: SampleBigInode},
		// A deleted file leaves a free slot behind.
		Dirent{Name: "deleted", Inode: 0},
		Dirent{Name: "sparse.bin", Inode: SampleSparseInode},
		Dirent{Name: "abs", Inode: SampleAbsLinkInode},
		Dirent{Name: "loop-a", Inode: SampleLoopAInode},
		Dirent{Name: "loop-b", Inode: SampleLoopBInode},
		Dirent{Name: "tty", Inode: SampleDeviceInode},
		Dirent{Name: "dangling", Inode: SampleDanglingInode},
		Dirent{Name: "docs-link", Inode: SampleDirLinkInode},
	)
	builder.AddFile(SampleHelloInode, 0o644, []byte(SampleHelloContents))
	builder.AddDirectory(
		SampleDocsInode,
		SampleRootInode,
		Dirent{Name: "readme.txt", Inode: SampleReadmeInode},
		Dirent{Name: "nested", Inode: SampleNestedInode},
	)
	builder.AddSymlink(SampleLinkInode, "docs/readme.txt")
	builder.AddFile(SampleBigInode, 0o600, SampleBigContents(zoneSize))
	builder.AddFile(SampleSparseInode, 0o644, SampleSparseContents(zoneSize))
	builder.AddFile(SampleReadmeInode, 0o444, []byte(SampleReadmeContents))
	builder.AddDirectory(
		SampleNestedInode,
		SampleDocsInode,
		Dirent{Name: "deep.txt", Inode: SampleDeepInode},
	)
	builder.AddFile(SampleDeepInode, 0o644, []byte(SampleDeepContents))
	builder.AddSymlink(SampleAbsLinkInode, "/hello.txt")
	builder.AddSymlink(SampleLoopAInode, "loop-b")
	builder.AddSymlink(SampleLoopBInode, "loop-a")
	builder.AddDevice(SampleDeviceInode, 0x0401)
	builder.AddSymlink(SampleDanglingInode, "nowhere")
	builder.AddSymlink(SampleDirLinkInode, "docs")
	return builder
}

// SampleRootNames lists the entries of the sample root directory in on-disk
// order, including "." and "..".
var SampleRootNames = []string{
	".",
	"..",
	"hello.txt",
	"docs",
	"readme",
	"big.bin",
	"sparse.bin",
	"abs",
	"loop-a",
	"loop-b",
	"tty",
	"dangling",
	"docs-link",
}
