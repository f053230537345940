// Package blockio provides ntfs.StorageReader adapters over real storage:
// a whole disk image file, and a bounded sub-range of one. Grounded on the
// teacher's internal/fs/udf.Reader, which opens an *os.File directly and
// reads through io.NewSectionReader (internal/fs/udf/reader.go, file.go).
package blockio

import (
	"fmt"
	"io"
	"os"
)

// FileReader adapts an *os.File to ntfs.StorageReader.
type FileReader struct {
	f    *os.File
	size int64
}

// OpenFile opens path read-only and stats its size up front, the way
// udf.NewReader does before any volume parsing begins.
func OpenFile(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open volume image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat volume image: %w", err)
	}
	return &FileReader{f: f, size: info.Size()}, nil
}

// ReadAt reads len(p) bytes at off, requiring a full read.
func (r *FileReader) ReadAt(p []byte, off int64) error {
	if off < 0 || off > r.size {
		return fmt.Errorf("offset %d out of range [0, %d]", off, r.size)
	}
	_, err := io.ReadFull(io.NewSectionReader(r.f, off, r.size-off), p)
	return err
}

// Size reports the file's total byte length.
func (r *FileReader) Size() int64 { return r.size }

// Close releases the underlying file handle.
func (r *FileReader) Close() error { return r.f.Close() }
