package ntfs

import (
	"encoding/binary"
	"strings"
)

// Filename namespace codes, per §4.6's namespace priority rule.
const (
	NamespacePOSIX        uint8 = 0
	NamespaceWin32        uint8 = 1
	NamespaceDOS          uint8 = 2
	NamespaceWin32AndDOS  uint8 = 3
)

// File attribute bits surfaced from $STANDARD_INFORMATION/$FILE_NAME.
const (
	FileAttrReadOnly  uint32 = 0x0001
	FileAttrHidden    uint32 = 0x0002
	FileAttrSystem    uint32 = 0x0004
	FileAttrDirectory uint32 = 0x0010
	FileAttrArchive   uint32 = 0x0020
	FileAttrSparse    uint32 = 0x0200
	FileAttrReparse   uint32 = 0x0400
	FileAttrCompressed uint32 = 0x0800
	FileAttrEncrypted uint32 = 0x4000
)

// StandardInfo is the decoded $STANDARD_INFORMATION attribute: raw Windows
// FILETIME (100ns ticks since 1601-01-01) timestamps and the attribute
// bitmask. Conversion to time.Time is left to the caller, per SPEC_FULL.md's
// supplemental-features note on timestamp formatting being an external
// concern.
type StandardInfo struct {
	CreationTime        uint64
	ModificationTime     uint64
	MFTModificationTime  uint64
	AccessTime           uint64
	FileAttributes       uint32
}

// FileNameInfo is one decoded $FILE_NAME attribute instance. A file may carry
// several (POSIX, Win32, DOS, or combined Win32AndDos), one per hard link.
type FileNameInfo struct {
	Parent               FileReference
	CreationTime         uint64
	ModificationTime     uint64
	MFTModificationTime  uint64
	AccessTime           uint64
	AllocatedSize        uint64
	RealSize             uint64
	Flags                uint32
	Namespace            uint8
	Name                 []uint16
}

func (n *FileNameInfo) String() string { return utf16ToString(n.Name) }

// Info aggregates every $STANDARD_INFORMATION and $FILE_NAME attribute a
// file carries, per §4.6's info().
type Info struct {
	Standard  StandardInfo
	FileNames []FileNameInfo
}

// File is the facade around a base file record plus its lazily-resolved
// attributes, per §3's File entity and §4.6.
type File struct {
	vol    *Volume
	ref    FileReference
	record *Record
	walker *AttributeWalker
}

// Reference returns the file's own (record, sequence) reference.
func (f *File) Reference() FileReference { return f.ref }

// IsDirectory reports the record's is-directory flag.
func (f *File) IsDirectory() bool { return f.record.IsDirectory() }

// InUse reports whether the base record is marked in-use.
func (f *File) InUse() bool { return f.record.InUse() }

// Attributes returns a fresh walker over this file's logical attributes.
func (f *File) Attributes() *AttributeWalker {
	return &AttributeWalker{attrs: f.walker.All()}
}

// Info decodes $STANDARD_INFORMATION and every $FILE_NAME attribute.
func (f *File) Info() (*Info, error) {
	info := &Info{}
	for _, a := range f.walker.All() {
		switch a.Type {
		case AttrStandardInformation:
			v, err := a.Value()
			if err != nil {
				return nil, err
			}
			buf, err := readAllValue(v)
			if err != nil {
				return nil, err
			}
			if len(buf) < 0x24 {
				return nil, errAttributeOutOfBounds(0, "$STANDARD_INFORMATION truncated")
			}
			info.Standard = StandardInfo{
				CreationTime:        binary.LittleEndian.Uint64(buf[0x00:0x08]),
				ModificationTime:    binary.LittleEndian.Uint64(buf[0x08:0x10]),
				MFTModificationTime: binary.LittleEndian.Uint64(buf[0x10:0x18]),
				AccessTime:          binary.LittleEndian.Uint64(buf[0x18:0x20]),
				FileAttributes:      binary.LittleEndian.Uint32(buf[0x20:0x24]),
			}
		case AttrFileName:
			v, err := a.Value()
			if err != nil {
				return nil, err
			}
			buf, err := readAllValue(v)
			if err != nil {
				return nil, err
			}
			fn, err := decodeFileNameAttr(buf)
			if err != nil {
				return nil, err
			}
			info.FileNames = append(info.FileNames, fn)
		}
	}
	return info, nil
}

func decodeFileNameAttr(buf []byte) (FileNameInfo, error) {
	if len(buf) < 0x42 {
		return FileNameInfo{}, errAttributeOutOfBounds(0, "$FILE_NAME truncated")
	}
	nameLength := buf[0x40]
	namespace := buf[0x41]
	nameStart := 0x42
	nameEnd := nameStart + int(nameLength)*2
	if nameEnd > len(buf) {
		return FileNameInfo{}, errAttributeOutOfBounds(0, "$FILE_NAME name runs past value")
	}
	return FileNameInfo{
		Parent:              FileReference(binary.LittleEndian.Uint64(buf[0x00:0x08])),
		CreationTime:        binary.LittleEndian.Uint64(buf[0x08:0x10]),
		ModificationTime:    binary.LittleEndian.Uint64(buf[0x10:0x18]),
		MFTModificationTime: binary.LittleEndian.Uint64(buf[0x18:0x20]),
		AccessTime:          binary.LittleEndian.Uint64(buf[0x20:0x28]),
		AllocatedSize:       binary.LittleEndian.Uint64(buf[0x28:0x30]),
		RealSize:            binary.LittleEndian.Uint64(buf[0x30:0x38]),
		Flags:               binary.LittleEndian.Uint32(buf[0x38:0x3C]),
		Namespace:           namespace,
		Name:                decodeUTF16LE(buf[nameStart:nameEnd]),
	}, nil
}

// namespaceRank implements §4.6's preference order: Win32AndDos first, then
// Win32, then Dos, Posix last.
func namespaceRank(ns uint8) int {
	switch ns {
	case NamespaceWin32AndDOS:
		return 3
	case NamespaceWin32:
		return 2
	case NamespaceDOS:
		return 1
	default:
		return 0
	}
}

// Name returns the preferred file-name attribute for this file, disambiguated
// by parent when the file has multiple hard links, per §4.6's name(parent).
func (f *File) Name(parent FileReference) (string, error) {
	info, err := f.Info()
	if err != nil {
		return "", err
	}

	var best *FileNameInfo
	bestRank := -1
	for i := range info.FileNames {
		fn := &info.FileNames[i]
		if fn.Parent != parent {
			continue
		}
		if r := namespaceRank(fn.Namespace); best == nil || r > bestRank {
			best, bestRank = fn, r
		}
	}
	if best == nil {
		for i := range info.FileNames {
			fn := &info.FileNames[i]
			if r := namespaceRank(fn.Namespace); best == nil || r > bestRank {
				best, bestRank = fn, r
			}
		}
	}
	if best == nil {
		return "", ErrNotFound
	}
	return best.String(), nil
}

// Data returns the named $DATA attribute's byte stream, matched
// case-insensitively; an empty name selects the unnamed stream, per §4.6's
// data(name). This is the historical case-sensitive-match bug's fix point.
func (f *File) Data(name string) (*Value, error) {
	target := stringToUTF16(name)
	for _, a := range f.walker.All() {
		if a.Type != AttrData {
			continue
		}
		if f.vol.upcase != nil {
			if f.vol.upcase.EqualFold(a.Name, target) {
				return a.Value()
			}
		} else if strings.EqualFold(a.NameString(), name) {
			return a.Value()
		}
	}
	return nil, ErrNotFound
}

// indexAttributeName is the filename index's on-disk name, $I30.
const indexAttributeName = "$I30"

// DirectoryIndex returns an Index Walker over the $I30 filename index, if
// this record is a directory, per §4.6's directory_index().
func (f *File) DirectoryIndex() (*IndexWalker, error) {
	if !f.IsDirectory() {
		return nil, &Error{Kind: KindNotFound, Reason: "not a directory"}
	}
	return newIndexWalker(f.vol, f.walker, indexAttributeName)
}
