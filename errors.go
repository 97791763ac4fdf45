package fsfs

import "errors"

// Package-specific error variables, usable with errors.Is. The taxonomy
// mirrors the error kinds a caller needs to distinguish; nothing else
// about a failure is surfaced beyond which of these it is.
var (
	// ErrNotMounted is returned by any file operation called while the
	// volume is not mounted.
	ErrNotMounted = errors.New("fsfs: not mounted")

	// ErrAlreadyMounted is returned by Mount when this FS value is
	// already attached to a volume.
	ErrAlreadyMounted = errors.New("fsfs: already mounted")

	// ErrAlreadyOpenDevice is returned by Format/Mount when the
	// underlying block device is already open. The check relies on an
	// advisory lock, so it is made only on unix hosts, where it catches
	// an open by this process or by another one.
	ErrAlreadyOpenDevice = errors.New("fsfs: device already open")

	// ErrBadMagic is returned by Mount when the volume's superblock
	// does not carry the expected magic number.
	ErrBadMagic = errors.New("fsfs: bad magic number")

	// ErrNoSuchFile is returned when a name does not resolve to a used
	// directory entry.
	ErrNoSuchFile = errors.New("fsfs: no such file")

	// ErrDuplicateName is returned by Create when the name is already
	// in use.
	ErrDuplicateName = errors.New("fsfs: duplicate name")

	// ErrNameTooLong is returned by Create when name exceeds
	// MaxFileName bytes.
	ErrNameTooLong = errors.New("fsfs: name too long")

	// ErrDirectoryFull is returned by Create when no directory slot is
	// free.
	ErrDirectoryFull = errors.New("fsfs: directory full")

	// ErrFileBusy is returned by Delete when the file has an open
	// handle.
	ErrFileBusy = errors.New("fsfs: file busy")

	// ErrFDTableFull is returned by Open when no descriptor slot is
	// free.
	ErrFDTableFull = errors.New("fsfs: descriptor table full")

	// ErrBadFD is returned when a descriptor is out of range or not
	// open.
	ErrBadFD = errors.New("fsfs: bad file descriptor")

	// ErrNoSpace is returned by the FAT allocator when it has no free
	// block left. Write does not pass it on: a write that runs out of
	// space returns a short (possibly zero) byte count and a nil error.
	ErrNoSpace = errors.New("fsfs: no space left on device")

	// ErrIOError is returned when the underlying block device read or
	// write fails or is short.
	ErrIOError = errors.New("fsfs: block I/O error")

	// ErrBadOffset is returned by Seek when offset is outside
	// [0, size], and by Truncate when length is negative or greater
	// than the current size.
	ErrBadOffset = errors.New("fsfs: offset out of range")
)
