package blockio

import (
	"fmt"
	"io"
)

// sectionSource is the minimal positional-read surface SectionReader needs
// from its underlying storage.
type sectionSource interface {
	ReadAt(p []byte, off int64) error
}

// SectionReader exposes a bounded byte range of an underlying
// ntfs.StorageReader as if it were a whole volume, grounded on the teacher's
// io.NewSectionReader use in internal/fs/udf/file.go's readFullAt. This lets
// a volume image embedded at an offset inside a larger container (a
// partition within a raw disk image) be opened directly.
type SectionReader struct {
	base   sectionSource
	offset int64
	size   int64
}

// NewSectionReader returns a StorageReader over [offset, offset+size) of
// base.
func NewSectionReader(base sectionSource, offset, size int64) *SectionReader {
	return &SectionReader{base: base, offset: offset, size: size}
}

// ReadAt reads len(p) bytes at an offset relative to the section start.
func (s *SectionReader) ReadAt(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > s.size {
		return fmt.Errorf("section offset %d+%d out of range [0, %d]", off, len(p), s.size)
	}
	return s.base.ReadAt(p, s.offset+off)
}

// Size reports the section's bounded length.
func (s *SectionReader) Size() int64 { return s.size }

var _ io.ReaderAt = (*sectionReaderAtAdapter)(nil)

// sectionReaderAtAdapter lets a SectionReader be used anywhere a plain
// io.ReaderAt is wanted (e.g. debugging tools that want to dd out a range).
type sectionReaderAtAdapter struct {
	s *SectionReader
}

func (a *sectionReaderAtAdapter) ReadAt(p []byte, off int64) (int, error) {
	if err := a.s.ReadAt(p, off); err != nil {
		return 0, err
	}
	return len(p), nil
}

// AsReaderAt wraps s as a standard io.ReaderAt.
func (s *SectionReader) AsReaderAt() io.ReaderAt {
	return &sectionReaderAtAdapter{s: s}
}
