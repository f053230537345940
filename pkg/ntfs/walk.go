package ntfs

import (
	"errors"
	"path"

	core "github.com/s0up4200/ntfsgo/internal/ntfs"
)

// WalkFunc is called for every file and directory WalkDir visits, with the
// full slash-separated path from the walk's root. Returning SkipDir from a
// call for a directory skips its contents; any other non-nil error aborts
// the walk immediately. Mirrors fs.WalkDirFunc, simplified to this package's
// File type rather than fs.DirEntry/fs.FileInfo.
type WalkFunc func(path string, file *File) error

// SkipDir tells WalkDir to skip the directory it was about to descend into.
var SkipDir = errors.New("skip this directory")

// WalkDir recursively visits root and everything beneath it in directory
// index order (the $I30 index's own collation order, not read/on-disk
// record order), calling fn for each entry. Grounded on the teacher's
// filepath.WalkDir use in cmd/bdinfo/main.go's runForPath, adapted from a
// filesystem-path walk to an index-driven in-memory one since there is no
// os.DirFS equivalent over a raw volume image.
func WalkDir(v *Volume, root string, fn WalkFunc) error {
	start, err := v.Open(root)
	if err != nil {
		return err
	}
	return walk(v, root, start, fn)
}

func walk(v *Volume, p string, f *File, fn WalkFunc) error {
	err := fn(p, f)
	if err != nil {
		if err == SkipDir {
			return nil
		}
		return err
	}
	if !f.IsDir() {
		return nil
	}

	idx, err := f.inner.DirectoryIndex()
	if err != nil {
		return err
	}
	idx.Reset()
	for {
		entry, err := idx.Next()
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		child, err := v.inner.OpenFile(entry.Reference)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return err
		}
		name, err := (&File{vol: v, inner: child}).Name()
		if err != nil {
			return err
		}
		childPath := path.Join(p, name)
		if err := walk(v, childPath, &File{vol: v, inner: child}, fn); err != nil {
			return err
		}
	}
	return nil
}
