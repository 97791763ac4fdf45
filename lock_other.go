//go:build !unix

package fsfs

import "os"

// lockExclusive is a no-op on platforms without advisory file locking;
// the only remaining guard is the per-FS mount-state check in
// FS.Format/Mount, so two FS values (or two processes) can open the same
// device file.
func lockExclusive(f *os.File) error { return nil }

func unlock(f *os.File) error { return nil }
