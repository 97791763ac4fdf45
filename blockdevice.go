package fsfs

import (
	"fmt"
	"io"
	"os"
)

// BlockDevice is a fixed-capacity array of NumBlocks blocks of BlockSize
// bytes each. Implementations need not be safe for concurrent use; the
// file system above it is explicitly single-threaded (spec §5).
type BlockDevice interface {
	// ReadBlock reads exactly BlockSize bytes from block i into buf.
	ReadBlock(i uint32, buf []byte) error
	// WriteBlock writes exactly BlockSize bytes from buf to block i.
	WriteBlock(i uint32, buf []byte) error
	// Close releases the device.
	Close() error
}

// CreateHostDevice creates a new host-file-backed block device of exactly
// NumBlocks*BlockSize zero bytes at name, then closes it. It fails if a
// device is already open at name.
func CreateHostDevice(name string) error {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	defer f.Close()
	if err := lockExclusive(f); err != nil {
		return ErrAlreadyOpenDevice
	}
	defer unlock(f)
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	zero := make([]byte, BlockSize)
	for i := 0; i < NumBlocks; i++ {
		if _, err := f.Write(zero); err != nil {
			return fmt.Errorf("%w: %v", ErrIOError, err)
		}
	}
	return nil
}

// OpenHostDevice attaches to an existing host-file-backed device. On
// platforms supporting advisory locking (unix) it fails if the device is
// already open, by this process or another one; elsewhere no such check
// is made.
func OpenHostDevice(name string) (*HostDevice, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := lockExclusive(f); err != nil {
		f.Close()
		return nil, ErrAlreadyOpenDevice
	}
	fi, err := f.Stat()
	if err != nil {
		unlock(f)
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if fi.Size() != NumBlocks*BlockSize {
		unlock(f)
		f.Close()
		return nil, fmt.Errorf("%w: unexpected device size %d", ErrIOError, fi.Size())
	}
	return &HostDevice{f: f}, nil
}

// HostDevice is a BlockDevice backed by a regular host file, exactly
// NumBlocks*BlockSize bytes long. Block i occupies byte range
// [i*BlockSize, (i+1)*BlockSize).
type HostDevice struct {
	f *os.File
}

func (d *HostDevice) ReadBlock(i uint32, buf []byte) error {
	if d.f == nil {
		return ErrNotMounted
	}
	if i >= NumBlocks {
		return fmt.Errorf("%w: block %d out of range", ErrIOError, i)
	}
	if len(buf) != BlockSize {
		return fmt.Errorf("%w: buffer size %d != %d", ErrIOError, len(buf), BlockSize)
	}
	n, err := d.f.ReadAt(buf, int64(i)*BlockSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if n != BlockSize {
		return fmt.Errorf("%w: short read (%d bytes)", ErrIOError, n)
	}
	return nil
}

func (d *HostDevice) WriteBlock(i uint32, buf []byte) error {
	if d.f == nil {
		return ErrNotMounted
	}
	if i >= NumBlocks {
		return fmt.Errorf("%w: block %d out of range", ErrIOError, i)
	}
	if len(buf) != BlockSize {
		return fmt.Errorf("%w: buffer size %d != %d", ErrIOError, len(buf), BlockSize)
	}
	n, err := d.f.WriteAt(buf, int64(i)*BlockSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if n != BlockSize {
		return fmt.Errorf("%w: short write (%d bytes)", ErrIOError, n)
	}
	return nil
}

func (d *HostDevice) Close() error {
	if d.f == nil {
		return nil
	}
	unlock(d.f)
	err := d.f.Close()
	d.f = nil
	return err
}
