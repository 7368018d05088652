/*
Package minixv1 implements a read-only driver for the file system used by Minix
version 1.

Both variants of the V1 format are supported: the original with 14-character
file names (magic 0x137F) and the later one with 30-character names (magic
0x138F). Nothing is ever written back to the image.

Layout of an image, in 1024-byte blocks:

	0                     boot block, ignored
	1                     superblock
	2                     inode bitmap, `imap_blocks` long
	2+imap                zone bitmap, `zmap_blocks` long
	2+imap+zmap           inode table, 32 inodes per block
	first_data_zone << n  data zones, each 2^n blocks

Bit 0 of both bitmaps is reserved and always set. Bit i of the inode bitmap
covers inode i; bit i of the zone bitmap covers zone `first_data_zone + i - 1`.

Every inode has seven direct zone pointers, one single-indirect pointer, and one
double-indirect pointer. A zone pointer of 0 is a hole and reads as zeroes.

References:

  - Tanenbaum, "Operating Systems: Design and Implementation", 1st ed., §5.6.
  - Linux fs/minix/inode.c and fs/minix/minix.h.
*/

package minixv1
