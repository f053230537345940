// Package ntfs is the convenience facade over internal/ntfs: it treats NTFS
// files as plain io.ReadSeeker streams and resolves slash-separated paths,
// for callers that do not need to walk records, attributes, or indexes
// directly. Mirrors the shape of the teacher's pkg/bdinfo facade over
// internal/fs/udf.
package ntfs

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	core "github.com/s0up4200/ntfsgo/internal/ntfs"
)

// StorageReader is re-exported so callers never need to import internal/ntfs
// directly just to satisfy Open's parameter type.
type StorageReader = core.StorageReader

// Volume is a thin wrapper around the structural layer's *core.Volume,
// adding path resolution.
type Volume struct {
	inner *core.Volume
}

// Open validates geometry, bootstraps MFT access, and loads $UpCase —
// everything a path-based caller needs up front, unlike the structural
// layer's Volume Facade where $UpCase loading is an explicit, separate step.
func Open(r StorageReader) (*Volume, error) {
	inner, err := core.OpenVolume(r)
	if err != nil {
		return nil, err
	}
	if err := inner.LoadUpcaseTable(); err != nil {
		return nil, err
	}
	return &Volume{inner: inner}, nil
}

// Inner exposes the structural layer's Volume for callers that need to drop
// down to record/attribute/index access.
func (v *Volume) Inner() *core.Volume { return v.inner }

// RootDirectory returns the root directory as a File.
func (v *Volume) RootDirectory() (*File, error) {
	f, err := v.inner.RootDirectory()
	if err != nil {
		return nil, err
	}
	return &File{vol: v, inner: f}, nil
}

// Open resolves a slash-separated path to a File. A path that is a single
// /<record-number> component — decimal, or hex with a 0x prefix — addresses
// a file record directly by reference instead of by name lookup, per the CLI
// surface's documented shorthand; deeper paths are always resolved by name.
func (v *Volume) Open(path string) (*File, error) {
	if ref, ok := parseRecordNumberPath(path); ok {
		inner, err := v.inner.OpenFile(core.NewFileReference(ref, 0))
		if err != nil {
			return nil, err
		}
		return &File{vol: v, inner: inner}, nil
	}

	current, err := v.RootDirectory()
	if err != nil {
		return nil, err
	}

	parts := splitPath(path)
	for _, part := range parts {
		if part == "" {
			continue
		}
		current, err = current.child(part)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return current, nil
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// parseRecordNumberPath recognizes /<record-number> (decimal or 0x-hex).
func parseRecordNumberPath(path string) (uint64, bool) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return 0, false
	}
	base := 10
	digits := trimmed
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		base = 16
		digits = trimmed[2:]
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// File wraps the structural layer's *core.File with path-aware helpers.
type File struct {
	vol   *Volume
	inner *core.File
}

// Inner exposes the structural File facade.
func (f *File) Inner() *core.File { return f.inner }

// FromCore wraps an already-opened structural File, for callers (such as the
// shell) that reach *core.File directly through an IndexWalker entry and
// need the facade's path-aware helpers (Name, Open) on the result.
func FromCore(v *Volume, inner *core.File) *File {
	return &File{vol: v, inner: inner}
}

// IsDir reports whether the file is a directory.
func (f *File) IsDir() bool { return f.inner.IsDirectory() }

// child resolves one path component within this directory via the filename
// index, case-insensitively (the index's own collation rule already folds
// case; an exact lookup on the component as typed is sufficient since the
// tree itself already orders names case-insensitively-then-case-sensitively).
func (f *File) child(name string) (*File, error) {
	if !f.IsDir() {
		return nil, core.ErrNotFound
	}
	idx, err := f.inner.DirectoryIndex()
	if err != nil {
		return nil, err
	}
	key := filenameIndexKey(name)
	entry, err := idx.Lookup(key)
	if err != nil {
		return nil, err
	}
	childFile, err := f.vol.inner.OpenFile(entry.Reference)
	if err != nil {
		return nil, err
	}
	return &File{vol: f.vol, inner: childFile}, nil
}

// Open returns the named data stream as a seekable byte stream; empty name
// selects the unnamed $DATA stream.
func (f *File) Open(streamName string) (*core.Value, error) {
	return f.inner.Data(streamName)
}

// Name returns the file's preferred display name: the $FILE_NAME with the
// highest-ranked namespace among all of them, whatever its parent. Hard
// links under different parents are not told apart.
func (f *File) Name() (string, error) {
	info, err := f.inner.Info()
	if err != nil {
		return "", err
	}
	if len(info.FileNames) == 0 {
		return "", core.ErrNotFound
	}
	best := info.FileNames[0]
	bestRank := -1
	for _, fn := range info.FileNames {
		if r := filenameRank(fn.Namespace); r > bestRank {
			best, bestRank = fn, r
		}
	}
	return best.String(), nil
}

// filenameIndexKey encodes name as the little-endian UTF-16 byte key the
// $I30 filename index stores and compares against.
func filenameIndexKey(name string) []byte {
	units := utf16.Encode([]rune(name))
	key := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(key[i*2:i*2+2], u)
	}
	return key
}

func filenameRank(ns uint8) int {
	switch ns {
	case core.NamespaceWin32AndDOS:
		return 3
	case core.NamespaceWin32:
		return 2
	case core.NamespaceDOS:
		return 1
	default:
		return 0
	}
}
