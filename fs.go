package fsfs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacobsa/timeutil"
)

// FS is a single mounted file system instance. The zero value is an
// unmounted FS ready for Format/Mount. One FS value owns at most one open
// BlockDevice at a time, mirroring the "one mount at a time" restriction
// of the original design (spec §9) without any package-level mutable
// state.
type FS struct {
	dev BlockDevice
	sb  superblock
	fat fatTable
	dir directoryTable
	fds handleTable

	mounted bool

	log   *slog.Logger
	clock timeutil.Clock
}

// Option configures an FS returned by New.
type Option func(*FS)

// WithLogger attaches a structured logger. Format, Mount and Unmount are
// logged at info level and Create/Delete at trace level; allocation
// failures and metadata-flush failures are not logged.
func WithLogger(l *slog.Logger) Option {
	return func(fsys *FS) { fsys.log = l }
}

// WithClock overrides the clock used to stamp creation/modification/mount
// timestamps. Defaults to the real wall clock.
func WithClock(c timeutil.Clock) Option {
	return func(fsys *FS) { fsys.clock = c }
}

// New returns an unmounted FS.
func New(opts ...Option) *FS {
	fsys := &FS{clock: timeutil.RealClock()}
	for _, opt := range opts {
		opt(fsys)
	}
	return fsys
}

const slogLevelTrace = slog.LevelDebug - 2

func (fsys *FS) logAttrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if fsys.log != nil {
		fsys.log.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

func (fsys *FS) trace(msg string, attrs ...slog.Attr) { fsys.logAttrs(slogLevelTrace, msg, attrs...) }
func (fsys *FS) info(msg string, attrs ...slog.Attr)  { fsys.logAttrs(slog.LevelInfo, msg, attrs...) }
func (fsys *FS) warn(msg string, attrs ...slog.Attr)  { fsys.logAttrs(slog.LevelWarn, msg, attrs...) }
func (fsys *FS) logerror(msg string, attrs ...slog.Attr) {
	fsys.logAttrs(slog.LevelError, msg, attrs...)
}

func (fsys *FS) now32() uint32 {
	return uint32(fsys.clock.Now().Unix())
}

// Format creates a zeroed block device at name and writes an empty
// volume's superblock, FAT, and directory to it, then closes the device.
// It does not mount the volume.
func (fsys *FS) Format(name string) error {
	if fsys.mounted {
		return ErrAlreadyMounted
	}
	if err := CreateHostDevice(name); err != nil {
		return err
	}
	dev, err := OpenHostDevice(name)
	if err != nil {
		return err
	}
	defer dev.Close()

	now := fsys.now32()
	sb := superblock{
		magic:       magic,
		fatStart:    fatStart,
		fatBlocks:   fatBlocks,
		dirStart:    dirStart,
		dirBlocks:   dirBlocks,
		dataStart:   dataStart,
		freeBlocks:  DataBlocks,
		created:     now,
		lastMounted: now,
	}
	var buf [BlockSize]byte
	sb.encode(buf[:])
	if err := dev.WriteBlock(0, buf[:]); err != nil {
		return err
	}

	var zero [BlockSize]byte
	for i := uint32(0); i < fatBlocks; i++ {
		if err := dev.WriteBlock(fatStart+i, zero[:]); err != nil {
			return err
		}
	}
	for i := uint32(0); i < dirBlocks; i++ {
		if err := dev.WriteBlock(dirStart+i, zero[:]); err != nil {
			return err
		}
	}
	fsys.info("formatted volume", slog.String("name", name))
	return nil
}

// Mount attaches fsys to the volume at name, reading its metadata caches
// into memory. It fails if fsys is already mounted, if the device cannot
// be opened, or if the volume's magic number does not match.
func (fsys *FS) Mount(name string) error {
	if fsys.mounted {
		return ErrAlreadyMounted
	}
	dev, err := OpenHostDevice(name)
	if err != nil {
		return err
	}

	var buf [BlockSize]byte
	if err := dev.ReadBlock(0, buf[:]); err != nil {
		dev.Close()
		return err
	}
	var sb superblock
	sb.decode(buf[:])
	if sb.magic != magic {
		dev.Close()
		return ErrBadMagic
	}

	var fat fatTable
	flat := make([]uint32, 0, fatBlocks*entPerFAT)
	for i := uint32(0); i < sb.fatBlocks; i++ {
		if err := dev.ReadBlock(sb.fatStart+i, buf[:]); err != nil {
			dev.Close()
			return err
		}
		for o := 0; o+4 <= BlockSize; o += 4 {
			flat = append(flat, leUint32(buf[o:]))
		}
	}
	fat.load(flat)
	fat.freeBlocks = sb.freeBlocks

	var dir directoryTable
	for i := uint32(0); i < sb.dirBlocks; i++ {
		if err := dev.ReadBlock(sb.dirStart+i, buf[:]); err != nil {
			dev.Close()
			return err
		}
		perBlock := BlockSize / dirEntSize
		for s := 0; s < perBlock; s++ {
			slot := int(i)*perBlock + s
			if slot >= MaxFiles {
				break
			}
			dir.entries[slot].decode(buf[s*dirEntSize:])
		}
	}

	fsys.dev = dev
	fsys.sb = sb
	fsys.fat = fat
	fsys.dir = dir
	fsys.fds = handleTable{}
	fsys.mounted = true

	fsys.sb.lastMounted = fsys.now32()
	if err := fsys.writeSuperblock(); err != nil {
		fsys.mounted = false
		fsys.dev = nil
		dev.Close()
		return err
	}
	fsys.info("mounted volume", slog.String("name", name))
	return nil
}

// Unmount releases all open handles and flushes the FAT, directory, and
// superblock to the device before closing it. It fails if fsys is not
// currently mounted.
func (fsys *FS) Unmount() error {
	if !fsys.mounted {
		return ErrNotMounted
	}
	fsys.fds.closeAll()

	var errs [3]error
	errs[0] = fsys.writeFAT()
	errs[1] = fsys.writeDir()
	errs[2] = fsys.writeSuperblock()

	closeErr := fsys.dev.Close()
	fsys.dev = nil
	fsys.mounted = false

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	if closeErr != nil {
		return fmt.Errorf("%w: %v", ErrIOError, closeErr)
	}
	fsys.info("unmounted volume")
	return nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLEUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (fsys *FS) writeSuperblock() error {
	var buf [BlockSize]byte
	fsys.sb.freeBlocks = fsys.fat.freeBlocks
	fsys.sb.encode(buf[:])
	return fsys.dev.WriteBlock(0, buf[:])
}

func (fsys *FS) writeFAT() error {
	var buf [BlockSize]byte
	for i := uint32(0); i < fsys.sb.fatBlocks; i++ {
		for o := 0; o < entPerFAT; o++ {
			idx := i*entPerFAT + uint32(o)
			var v uint32
			if idx < DataBlocks {
				v = fsys.fat.entries[idx]
			}
			putLEUint32(buf[o*4:], v)
		}
		if err := fsys.dev.WriteBlock(fsys.sb.fatStart+i, buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func (fsys *FS) writeDir() error {
	var buf [BlockSize]byte
	perBlock := BlockSize / dirEntSize
	for i := uint32(0); i < fsys.sb.dirBlocks; i++ {
		clear(buf[:])
		for s := 0; s < perBlock; s++ {
			slot := int(i)*perBlock + s
			if slot >= MaxFiles {
				break
			}
			fsys.dir.entries[slot].encode(buf[s*dirEntSize:])
		}
		if err := fsys.dev.WriteBlock(fsys.sb.dirStart+i, buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// flushMeta persists FAT, directory, and superblock after a mutating
// operation (write-through metadata, spec §3/§5).
func (fsys *FS) flushMeta() error {
	if err := fsys.writeFAT(); err != nil {
		return err
	}
	if err := fsys.writeDir(); err != nil {
		return err
	}
	return fsys.writeSuperblock()
}

// Create allocates a new, empty, zero-length file named name.
func (fsys *FS) Create(name string) error {
	if !fsys.mounted {
		return ErrNotMounted
	}
	if len(name) == 0 || len(name) > MaxFileName {
		return ErrNameTooLong
	}
	if _, ok := fsys.dir.findByName(name); ok {
		return ErrDuplicateName
	}
	slot, ok := fsys.dir.findFreeSlot()
	if !ok {
		return ErrDirectoryFull
	}

	now := fsys.now32()
	e := dirEntry{
		size:       0,
		firstBlock: nilBlock,
		created:    now,
		modified:   now,
		used:       true,
	}
	e.setName(name)
	fsys.dir.entries[slot] = e

	if err := fsys.flushMeta(); err != nil {
		fsys.dir.entries[slot] = dirEntry{}
		return err
	}
	fsys.trace("created file", slog.String("name", name))
	return nil
}

// Delete frees a file's data chain and directory entry. It fails if the
// file is currently open.
func (fsys *FS) Delete(name string) error {
	if !fsys.mounted {
		return ErrNotMounted
	}
	slot, ok := fsys.dir.findByName(name)
	if !ok {
		return ErrNoSuchFile
	}
	if fsys.fds.anyOpenOn(slot) {
		return ErrFileBusy
	}

	fsys.fat.freeChain(fsys.dir.entries[slot].firstBlock)
	fsys.dir.entries[slot] = dirEntry{}

	if err := fsys.flushMeta(); err != nil {
		return err
	}
	fsys.trace("deleted file", slog.String("name", name))
	return nil
}

// Open returns a new descriptor positioned at offset 0 for the named
// file.
func (fsys *FS) Open(name string) (int, error) {
	if !fsys.mounted {
		return -1, ErrNotMounted
	}
	slot, ok := fsys.dir.findByName(name)
	if !ok {
		return -1, ErrNoSuchFile
	}
	fd, ok := fsys.fds.findFree()
	if !ok {
		return -1, ErrFDTableFull
	}
	fsys.fds.entries[fd] = handle{dirSlot: slot, offset: 0, used: true}
	return fd, nil
}

func (fsys *FS) handle(fd int) (*handle, error) {
	if !fsys.mounted {
		return nil, ErrNotMounted
	}
	if fd < 0 || fd >= MaxFD || !fsys.fds.entries[fd].used {
		return nil, ErrBadFD
	}
	return &fsys.fds.entries[fd], nil
}

// Close releases fd.
func (fsys *FS) Close(fd int) error {
	h, err := fsys.handle(fd)
	if err != nil {
		return err
	}
	*h = handle{}
	return nil
}

// DirInfo describes one used directory entry, for callers that want to
// list a volume's contents without opening every file (e.g. fuseview).
type DirInfo struct {
	Name     string
	Size     int64
	Created  uint32
	Modified uint32
}

// List returns every used directory entry in slot order.
func (fsys *FS) List() []DirInfo {
	var out []DirInfo
	for i := range fsys.dir.entries {
		e := &fsys.dir.entries[i]
		if !e.used {
			continue
		}
		out = append(out, DirInfo{
			Name:     e.nameString(),
			Size:     int64(e.size),
			Created:  e.created,
			Modified: e.modified,
		})
	}
	return out
}

// Size returns the byte size of the file referenced by fd.
func (fsys *FS) Size(fd int) (int64, error) {
	h, err := fsys.handle(fd)
	if err != nil {
		return -1, err
	}
	return int64(fsys.dir.entries[h.dirSlot].size), nil
}

// Seek sets fd's byte cursor. offset must be in [0, size]; offset == size
// is allowed as the write-append position.
func (fsys *FS) Seek(fd int, offset int64) error {
	h, err := fsys.handle(fd)
	if err != nil {
		return err
	}
	size := int64(fsys.dir.entries[h.dirSlot].size)
	if offset < 0 || offset > size {
		return ErrBadOffset
	}
	h.offset = uint32(offset)
	return nil
}

// cursor locates the (block, byteInBlock) pair o bytes into the chain
// starting at first. "past end" is reported by returning ok=false, which
// happens when the chain terminates before o bytes have been walked
// (block-granularity only; any leftover byteInBlock at that point is
// discarded by the caller, which never dereferences it when !ok).
func (fsys *FS) cursor(first uint32, o uint32) (block uint32, byteInBlock uint32, ok bool) {
	n := o / BlockSize
	r := o % BlockSize
	block = first
	for i := uint32(0); i < n; i++ {
		if block == nilBlock {
			return 0, 0, false
		}
		block = fsys.fat.next(block)
	}
	if block == nilBlock {
		return 0, 0, false
	}
	return block, r, true
}

// Read copies up to len(buf) bytes from fd's current offset, advancing
// it by the number of bytes actually copied. Reading at or past EOF
// returns (0, nil) without advancing the offset.
func (fsys *FS) Read(fd int, buf []byte) (int, error) {
	h, err := fsys.handle(fd)
	if err != nil {
		return 0, err
	}
	e := &fsys.dir.entries[h.dirSlot]
	if h.offset >= e.size {
		return 0, nil
	}
	remaining := e.size - h.offset
	toRead := uint32(len(buf))
	if toRead > remaining {
		toRead = remaining
	}

	block, byteInBlock, ok := fsys.cursor(e.firstBlock, h.offset)
	var read uint32
	var data [BlockSize]byte
	for ok && read < toRead {
		if err := fsys.dev.ReadBlock(dataStart+block, data[:]); err != nil {
			return int(read), err
		}
		n := BlockSize - byteInBlock
		if need := toRead - read; n > need {
			n = need
		}
		copy(buf[read:], data[byteInBlock:byteInBlock+n])
		read += n
		byteInBlock = 0
		block = fsys.fat.next(block)
		ok = block != nilBlock
	}

	h.offset += read
	return int(read), nil
}

// Write writes len(buf) bytes at fd's current offset, extending the file
// contiguously past EOF as needed (no sparse holes). If the FAT runs out
// of space mid-write, the prefix already written is committed (size is
// updated to the committed length) and the byte count actually written
// is returned — not an error, matching the traditional short-write
// contract. fd's offset advances by exactly the bytes copied.
func (fsys *FS) Write(fd int, buf []byte) (int, error) {
	h, err := fsys.handle(fd)
	if err != nil {
		return 0, err
	}
	e := &fsys.dir.entries[h.dirSlot]

	offset := h.offset
	const capacity = DataBlocks * BlockSize
	nbyte64 := int64(len(buf))
	if int64(offset)+nbyte64 > capacity {
		nbyte64 = capacity - int64(offset)
	}
	if nbyte64 < 0 {
		nbyte64 = 0
	}
	nbyte := uint32(nbyte64)
	oldSize := e.size

	commit := func(written uint32) (int, error) {
		e.size = max(oldSize, offset+written)
		h.offset += written
		if written > 0 {
			e.modified = fsys.now32()
		}
		if err := fsys.flushMeta(); err != nil {
			return int(written), err
		}
		return int(written), nil
	}

	if e.firstBlock == nilBlock && nbyte > 0 {
		blk, err := fsys.fat.allocateChainHead()
		if err != nil {
			return commit(0)
		}
		e.firstBlock = blk
	}

	blockOffset := offset / BlockSize
	byteInBlock := offset % BlockSize
	block := e.firstBlock
	prev := nilBlock
	for i := uint32(0); i < blockOffset && block != nilBlock; i++ {
		prev = block
		block = fsys.fat.next(block)
	}

	if block == nilBlock && nbyte > 0 {
		blk, err := fsys.fat.extendChain(prev)
		if err != nil {
			return commit(0)
		}
		block = blk
	}

	var written uint32
	var data [BlockSize]byte
	for written < nbyte && block != nilBlock {
		if byteInBlock != 0 || nbyte-written < BlockSize {
			if err := fsys.dev.ReadBlock(dataStart+block, data[:]); err != nil {
				return commit(written)
			}
		} else {
			clear(data[:])
		}

		n := BlockSize - byteInBlock
		if need := nbyte - written; n > need {
			n = need
		}
		copy(data[byteInBlock:byteInBlock+n], buf[written:written+n])
		if err := fsys.dev.WriteBlock(dataStart+block, data[:]); err != nil {
			return commit(written)
		}
		written += n
		byteInBlock = 0

		if written < nbyte && fsys.fat.next(block) == nilBlock {
			if _, err := fsys.fat.extendChain(block); err != nil {
				return commit(written)
			}
		}
		block = fsys.fat.next(block)
	}

	return commit(written)
}

// Truncate shrinks or leaves unchanged the file referenced by fd to
// length bytes. length must be in [0, current size]; shrinking to 0
// detaches the chain head entirely. If fd's own offset now exceeds
// length it is clamped; other open handles on the same file are left
// untouched until their next operation observes the new size.
func (fsys *FS) Truncate(fd int, length int64) error {
	h, err := fsys.handle(fd)
	if err != nil {
		return err
	}
	e := &fsys.dir.entries[h.dirSlot]
	size := int64(e.size)
	if length < 0 || length > size {
		return ErrBadOffset
	}
	if length == size {
		return nil
	}

	if length == 0 {
		fsys.fat.freeChain(e.firstBlock)
		e.firstBlock = nilBlock
	} else {
		// Walk to the block that holds byte length-1: it survives
		// truncation, so its FAT entry becomes the new chain end and
		// everything after it is freed.
		keepBlock := uint32(length-1) / BlockSize
		block := e.firstBlock
		for i := uint32(0); i < keepBlock; i++ {
			block = fsys.fat.next(block)
		}
		successor := fsys.fat.next(block)
		fsys.fat.entries[block] = nilBlock
		fsys.fat.freeChain(successor)
	}

	e.size = uint32(length)
	if h.offset > uint32(length) {
		h.offset = uint32(length)
	}
	e.modified = fsys.now32()

	return fsys.flushMeta()
}
