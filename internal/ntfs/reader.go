package ntfs

import "fmt"

func errOffsetOutOfRange(off, size int64) error {
	return fmt.Errorf("offset %d out of range [0, %d]", off, size)
}

// StorageReader is the one collaborator this package requires from its
// caller: a positional, blocking read surface over the backing volume image.
// Implementations must return a full read or an error — the library assumes
// io.ReaderAt semantics (a short read without io.EOF is a caller bug, not a
// signal this package interprets).
type StorageReader interface {
	// ReadAt reads len(p) bytes starting at absolute offset off. It returns
	// an error if fewer than len(p) bytes could be read.
	ReadAt(p []byte, off int64) error

	// Size reports the total addressable size of the storage in bytes.
	Size() int64
}

// readAt is a small helper used throughout the package to turn a
// StorageReader failure into a properly-typed *Error.
func readAt(r StorageReader, p []byte, off int64) error {
	if off < 0 || off > r.Size() {
		return errIO(errOffsetOutOfRange(off, r.Size()))
	}
	if err := r.ReadAt(p, off); err != nil {
		return errIO(err)
	}
	return nil
}
