// Package fsfs implements a user-space, single-volume file system over a
// fixed-size block device: flat files named by short strings, stored as
// chains of fixed-size blocks tracked by a File Allocation Table.
package fsfs

import "encoding/binary"

// Volume geometry. These are fixed for the on-disk format; a volume
// created with one set of constants cannot be mounted by a build using
// another.
const (
	BlockSize   = 4096
	NumBlocks   = 8192
	DataBlocks  = 4096
	MaxFiles    = 64
	MaxFileName = 15
	MaxFD       = 32
	magic       = 0x46534653 // "FSFS"

	fatStart   = 1
	fatBlocks  = 4
	dirStart   = fatStart + fatBlocks
	dirBlocks  = 1
	dataStart  = dirStart + dirBlocks
	entPerFAT  = BlockSize / 4 // 32-bit FAT entries per block
	dirEntSize = 64            // must fit MaxFiles entries in one block (<=64B/entry)
)

// nilBlock is the sentinel used both for "end of chain" in the FAT and
// for "file has no data" in a directory entry's first block.
const nilBlock uint32 = 0xFFFFFFFF

func init() {
	if fatBlocks*entPerFAT < DataBlocks {
		panic("fsfs: FAT region too small for DataBlocks")
	}
	if dirBlocks*(BlockSize/dirEntSize) < MaxFiles {
		panic("fsfs: directory region too small for MaxFiles")
	}
	if dataStart+DataBlocks > NumBlocks {
		panic("fsfs: data region overruns device")
	}
}

// superblock is the persisted volume header, stored at block 0.
type superblock struct {
	magic       uint32
	fatStart    uint32
	fatBlocks   uint32
	dirStart    uint32
	dirBlocks   uint32
	dataStart   uint32
	freeBlocks  uint32
	created     uint32
	lastMounted uint32
}

const superblockSize = 4 * 9 // 9 uint32 fields, see superblock

func init() {
	if superblockSize > BlockSize {
		panic("fsfs: superblock does not fit in one block")
	}
}

func (sb *superblock) encode(buf []byte) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], sb.magic)
	le.PutUint32(buf[4:], sb.fatStart)
	le.PutUint32(buf[8:], sb.fatBlocks)
	le.PutUint32(buf[12:], sb.dirStart)
	le.PutUint32(buf[16:], sb.dirBlocks)
	le.PutUint32(buf[20:], sb.dataStart)
	le.PutUint32(buf[24:], sb.freeBlocks)
	le.PutUint32(buf[28:], sb.created)
	le.PutUint32(buf[32:], sb.lastMounted)
}

func (sb *superblock) decode(buf []byte) {
	le := binary.LittleEndian
	sb.magic = le.Uint32(buf[0:])
	sb.fatStart = le.Uint32(buf[4:])
	sb.fatBlocks = le.Uint32(buf[8:])
	sb.dirStart = le.Uint32(buf[12:])
	sb.dirBlocks = le.Uint32(buf[16:])
	sb.dataStart = le.Uint32(buf[20:])
	sb.freeBlocks = le.Uint32(buf[24:])
	sb.created = le.Uint32(buf[28:])
	sb.lastMounted = le.Uint32(buf[32:])
}

// dirEntry is one persisted directory slot. Packed layout (little-endian):
// 16-byte NUL-terminated name, 4-byte size, 4-byte firstBlock, 4-byte
// created, 4-byte modified, 1-byte used flag, padded to dirEntSize bytes.
type dirEntry struct {
	name       [MaxFileName + 1]byte
	size       uint32
	firstBlock uint32
	created    uint32
	modified   uint32
	used       bool
}

func (e *dirEntry) encode(buf []byte) {
	copy(buf[0:16], e.name[:])
	le := binary.LittleEndian
	le.PutUint32(buf[16:], e.size)
	le.PutUint32(buf[20:], e.firstBlock)
	le.PutUint32(buf[24:], e.created)
	le.PutUint32(buf[28:], e.modified)
	if e.used {
		buf[32] = 1
	} else {
		buf[32] = 0
	}
}

func (e *dirEntry) decode(buf []byte) {
	copy(e.name[:], buf[0:16])
	le := binary.LittleEndian
	e.size = le.Uint32(buf[16:])
	e.firstBlock = le.Uint32(buf[20:])
	e.created = le.Uint32(buf[24:])
	e.modified = le.Uint32(buf[28:])
	e.used = buf[32] != 0
}

// nameString returns the NUL-terminated name field as a Go string.
func (e *dirEntry) nameString() string {
	n := 0
	for n < len(e.name) && e.name[n] != 0 {
		n++
	}
	return string(e.name[:n])
}

func (e *dirEntry) setName(name string) {
	e.name = [MaxFileName + 1]byte{}
	copy(e.name[:MaxFileName], name)
}
