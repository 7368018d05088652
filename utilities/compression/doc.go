// Package compression stores Minix images compactly.
//
// A freshly made Minix image is mostly zeroes: the unused tail of the inode
// table, free zones, and the padding after each superblock and bitmap. Images
// are therefore kept run-length encoded first and gzipped second, with the
// extension `.rle.gz`. The CLI and the test helpers accept either form.
//
// The run-length encoding is RLE8, as used by the BMP format. A byte occurring
// N >= 2 times in a row is written twice, followed by one unsigned byte giving
// the number of further repetitions:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
//
// One group covers at most 257 bytes; longer runs become several groups. A byte
// occurring exactly twice costs three bytes, since the count is mandatory.
//
// A 1.44 MB image with a handful of small files shrinks to a few hundred bytes.
package compression
