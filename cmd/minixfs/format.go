package main

import (
	"fmt"
	"time"

	"github.com/dargueta/minixfs"
)

// timeLayout is how timestamps are shown in listings.
const timeLayout = "2006-01-02 15:04"

// modeString renders a raw mode the way ls(1) does, e.g. "drwxr-xr-x".
func modeString(mode uint32) string {
	var output [10]byte

	switch mode & minixfs.S_IFMT {
	case minixfs.S_IFREG:
		output[0] = '-'
	case minixfs.S_IFDIR:
		output[0] = 'd'
	case minixfs.S_IFLNK:
		output[0] = 'l'
	case minixfs.S_IFCHR:
		output[0] = 'c'
	case minixfs.S_IFBLK:
		output[0] = 'b'
	case minixfs.S_IFIFO:
		output[0] = 'p'
	case minixfs.S_IFSOCK:
		output[0] = 's'
	default:
		output[0] = '?'
	}

	const permissionChars = "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if mode&(1<<(8-i)) != 0 {
			output[i+1] = permissionChars[i]
		} else {
			output[i+1] = '-'
		}
	}

	setSpecialBit(&output, 3, mode&minixfs.S_ISUID != 0, 's')
	setSpecialBit(&output, 6, mode&minixfs.S_ISGID != 0, 's')
	setSpecialBit(&output, 9, mode&minixfs.S_ISVTX != 0, 't')
	return string(output[:])
}

// setSpecialBit overlays a setuid, setgid, or sticky bit on the execute
// position: lowercase if it's also executable, uppercase if not.
func setSpecialBit(output *[10]byte, position int, isSet bool, char byte) {
	if !isSet {
		return
	}
	if output[position] == 'x' {
		output[position] = char
	} else {
		output[position] = char - 'a' + 'A'
	}
}

// typeName is a human-readable name for the file type in a raw mode.
func typeName(mode uint32) string {
	switch mode & minixfs.S_IFMT {
	case minixfs.S_IFREG:
		return "regular file"
	case minixfs.S_IFDIR:
		return "directory"
	case minixfs.S_IFLNK:
		return "symbolic link"
	case minixfs.S_IFCHR:
		return "character device"
	case minixfs.S_IFBLK:
		return "block device"
	case minixfs.S_IFIFO:
		return "fifo"
	case minixfs.S_IFSOCK:
		return "socket"
	}
	return "unknown"
}

func isDevice(stat minixfs.FileStat) bool {
	fileType := stat.Mode & minixfs.S_IFMT
	return fileType == minixfs.S_IFCHR || fileType == minixfs.S_IFBLK
}

// Minix packs device numbers as major<<8 | minor.
func deviceNumbers(rdev uint64) (uint64, uint64) {
	return rdev >> 8, rdev & 0xff
}

// listingRow is one line of `ls` output. The csv tags are the column names in
// CSV mode.
type listingRow struct {
	Mode     string `csv:"mode"`
	Links    uint64 `csv:"links"`
	Uid      uint32 `csv:"uid"`
	Gid      uint32 `csv:"gid"`
	Size     string `csv:"size"`
	Modified string `csv:"modified"`
	Inode    uint64 `csv:"inode"`
	Name     string `csv:"name"`
	Target   string `csv:"target"`
}

func newListingRow(name string, stat minixfs.FileStat, target string) *listingRow {
	size := fmt.Sprintf("%d", stat.Size)
	if isDevice(stat) {
		major, minor := deviceNumbers(stat.Rdev)
		size = fmt.Sprintf("%d, %d", major, minor)
	}

	return &listingRow{
		Mode:     modeString(stat.Mode),
		Links:    stat.Nlinks,
		Uid:      stat.Uid,
		Gid:      stat.Gid,
		Size:     size,
		Modified: stat.LastModified.UTC().Format(timeLayout),
		Inode:    stat.InodeNumber,
		Name:     name,
		Target:   target,
	}
}

// Long renders the row like `ls -l`.
func (row *listingRow) Long() string {
	line := fmt.Sprintf(
		"%s %3d %5d %5d %9s %s %s",
		row.Mode,
		row.Links,
		row.Uid,
		row.Gid,
		row.Size,
		row.Modified,
		row.Name,
	)
	if row.Target != "" {
		line += " -> " + row.Target
	}
	return line
}

// statOutput is what `stat` prints, as YAML.
type statOutput struct {
	Path     string `yaml:"path"`
	Inode    uint64 `yaml:"inode"`
	Type     string `yaml:"type"`
	Mode     string `yaml:"mode"`
	Links    uint64 `yaml:"links"`
	Uid      uint32 `yaml:"uid"`
	Gid      uint32 `yaml:"gid"`
	Size     int64  `yaml:"size"`
	Blocks   int64  `yaml:"blocks"`
	Device   string `yaml:"device,omitempty"`
	Modified string `yaml:"modified"`
	Target   string `yaml:"target,omitempty"`
}

func newStatOutput(path string, stat minixfs.FileStat, target string) statOutput {
	output := statOutput{
		Path:     path,
		Inode:    stat.InodeNumber,
		Type:     typeName(stat.Mode),
		Mode:     fmt.Sprintf("%04o (%s)", stat.Mode&0o7777, modeString(stat.Mode)),
		Links:    stat.Nlinks,
		Uid:      stat.Uid,
		Gid:      stat.Gid,
		Size:     stat.Size,
		Blocks:   stat.NumBlocks,
		Modified: stat.LastModified.UTC().Format(time.RFC3339),
		Target:   target,
	}
	if isDevice(stat) {
		major, minor := deviceNumbers(stat.Rdev)
		output.Device = fmt.Sprintf("%d, %d", major, minor)
	}
	return output
}
